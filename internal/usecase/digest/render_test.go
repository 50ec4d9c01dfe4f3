package digest

import (
	"strings"
	"testing"

	"decompress/internal/domain"
)

func TestGroupByChannelKeepsOrder(t *testing.T) {
	groups := GroupByChannel(sampleRows())
	if len(groups) != 2 {
		t.Fatalf("ожидали 2 канала, получили %d", len(groups))
	}
	if groups[0].ChannelID != "c1" || groups[1].ChannelID != "c2" {
		t.Fatalf("каналы должны идти в порядке первого появления")
	}
	if len(groups[0].Videos) != 2 || groups[0].Videos[0].ID != "v1" || groups[0].Videos[1].ID != "v3" {
		t.Fatalf("видео внутри канала должны сохранять порядок выборки: %+v", groups[0].Videos)
	}
	if CountSummaries(sampleRows()) != 2 {
		t.Fatalf("ожидали 2 саммари")
	}
}

func TestRenderDaily(t *testing.T) {
	rows := sampleRows()
	html, err := Render(RenderInput{
		Groups:       GroupByChannel(rows),
		VideoCount:   len(rows),
		SummaryCount: CountSummaries(rows),
		Frequency:    domain.FrequencyDaily,
		BaseURL:      "https://decompress.app/",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	mustContain(t, html, "Your Daily Digest")
	mustContain(t, html, "3 new videos yesterday")
	mustContain(t, html, "3 new videos • 2 with summaries")
	mustContain(t, html, `href="https://decompress.app/channels/c1"`)
	mustContain(t, html, `href="https://decompress.app/videos/v2"`)
	mustContain(t, html, "2 videos")
	mustContain(t, html, "1 video<")
	mustContain(t, html, "1h 5m")
	mustContain(t, html, "12m")
	mustContain(t, html, "A <strong>fast</strong> intro.")
	mustContain(t, html, "You're receiving this because you enabled daily digests.")
	if strings.Index(html, "Fireship") > strings.Index(html, "Gopher TV") {
		t.Fatalf("Fireship должен идти первым")
	}
}

func TestRenderDeterministic(t *testing.T) {
	in := RenderInput{Groups: GroupByChannel(sampleRows()), VideoCount: 3, SummaryCount: 2, Frequency: domain.FrequencyWeekly, BaseURL: "https://x"}
	a, err := Render(in)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	b, _ := Render(in)
	if a != b {
		t.Fatalf("рендер должен быть детерминированным")
	}
}

func TestRenderWeeklyTruncatesSummary(t *testing.T) {
	long := strings.Repeat("word ", 60)
	groups := []domain.ChannelGroup{{ChannelID: "c", ChannelName: "C", Videos: []domain.DigestVideo{{ID: "v", Title: "T", Summary: long}}}}

	weekly, err := Render(RenderInput{Groups: groups, VideoCount: 1, SummaryCount: 1, Frequency: domain.FrequencyWeekly, BaseURL: "https://x"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	mustContain(t, weekly, "Your Weekly Digest")
	mustContain(t, weekly, "1 new video this week")
	mustContain(t, weekly, "1 with summary")
	mustContain(t, weekly, strings.TrimSpace(long[:150])+"...")
	mustNotContain(t, weekly, strings.TrimSpace(long))

	daily, err := Render(RenderInput{Groups: groups, VideoCount: 1, SummaryCount: 1, Frequency: domain.FrequencyDaily, BaseURL: "https://x"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	mustNotContain(t, daily, "...")
	mustContain(t, daily, strings.TrimSpace(long))
}

func TestRenderEscapesRawHTML(t *testing.T) {
	groups := []domain.ChannelGroup{{ChannelID: "c", ChannelName: "<b>C</b>", Videos: []domain.DigestVideo{{ID: "v", Title: "T", Summary: "<script>alert(1)</script> ok"}}}}
	html, err := Render(RenderInput{Groups: groups, VideoCount: 1, Frequency: domain.FrequencyDaily, BaseURL: "https://x"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	mustNotContain(t, html, "<script>")
	mustContain(t, html, "&lt;b&gt;C&lt;/b&gt;")
}

func TestSubjectAndDuration(t *testing.T) {
	if Subject(1) != "1 new video from your channels" {
		t.Fatalf("неверная тема для одного видео: %s", Subject(1))
	}
	if Subject(3) != "3 new videos from your channels" {
		t.Fatalf("неверная тема: %s", Subject(3))
	}
	if FormatDuration(nil) != "" || FormatDuration(intPtr(59)) != "0m" || FormatDuration(intPtr(3600)) != "1h 0m" {
		t.Fatalf("неверное форматирование длительности")
	}
}

func TestTruncateSummaryRunes(t *testing.T) {
	s := strings.Repeat("я", 200)
	got := TruncateSummary(s, 150)
	if got != strings.Repeat("я", 150)+"..." {
		t.Fatalf("обрезка должна идти по символам")
	}
	if TruncateSummary("short", 150) != "short" {
		t.Fatalf("короткий текст не обрезается")
	}
}
