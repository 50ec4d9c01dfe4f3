package digest

import (
	"strings"
	"unicode/utf8"
)

const (
	snippetMarker = "## Top News This Week"
	snippetLimit  = 1500
)

// DigestSnippet вырезает блок главных новостей из markdown еженедельного дайджеста.
// Без маркера возвращает первые 1500 байт с многоточием, без разделителя "---"
// после маркера обрезает на 1500 байт от маркера.
func DigestSnippet(content string) string {
	idx := strings.Index(content, snippetMarker)
	if idx == -1 {
		return cutAt(content, snippetLimit) + "..."
	}
	from := idx + len(snippetMarker)
	div := strings.Index(content[from:], "---")
	if div == -1 {
		return cutAt(content, idx+snippetLimit) + "..."
	}
	return strings.TrimSpace(content[:from+div])
}

// cutAt обрезает строку не длиннее n байт по границе руны.
func cutAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
