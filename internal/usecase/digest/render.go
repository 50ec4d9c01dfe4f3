package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"decompress/internal/domain"
)

const weeklySummaryLimit = 150

//go:embed templates/digest.html.tmpl
var templateFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templateFS, "templates/digest.html.tmpl"))

// Сырой HTML в саммари экранируется: WithUnsafe не включаем.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// RenderInput данные для письма.
type RenderInput struct {
	Groups       []domain.ChannelGroup
	VideoCount   int
	SummaryCount int
	Frequency    domain.Frequency
	BaseURL      string
}

type emailView struct {
	Title     string
	Subtitle  string
	Preview   string
	Stats     string
	Frequency string
	BaseURL   string
	Channels  []channelView
}

type channelView struct {
	Name       string
	URL        string
	Thumbnail  string
	CountLabel string
	Videos     []videoView
}

type videoView struct {
	Title     string
	URL       string
	Thumbnail string
	Duration  string
	Summary   template.HTML
}

// Render строит HTML письма. Результат зависит только от входа.
func Render(in RenderInput) (string, error) {
	baseURL := strings.TrimRight(in.BaseURL, "/")
	weekly := in.Frequency == domain.FrequencyWeekly

	view := emailView{
		Title:     Subject(in.VideoCount),
		Subtitle:  "Your Daily Digest",
		Preview:   fmt.Sprintf("%s yesterday", pluralVideos(in.VideoCount)),
		Stats:     pluralVideos(in.VideoCount),
		Frequency: string(domain.FrequencyDaily),
		BaseURL:   baseURL,
	}
	if weekly {
		view.Subtitle = "Your Weekly Digest"
		view.Preview = fmt.Sprintf("%s this week", pluralVideos(in.VideoCount))
		view.Frequency = string(domain.FrequencyWeekly)
	}
	if in.SummaryCount > 0 {
		view.Stats += fmt.Sprintf(" • %d with %s", in.SummaryCount, plural(in.SummaryCount, "summary", "summaries"))
	}

	for _, g := range in.Groups {
		ch := channelView{
			Name:       g.ChannelName,
			URL:        baseURL + "/channels/" + g.ChannelID,
			Thumbnail:  g.ChannelThumbnailURL,
			CountLabel: fmt.Sprintf("%d %s", len(g.Videos), plural(len(g.Videos), "video", "videos")),
		}
		for _, v := range g.Videos {
			summary, err := summaryHTML(v.Summary, weekly)
			if err != nil {
				return "", fmt.Errorf("саммари видео %s: %w", v.ID, err)
			}
			ch.Videos = append(ch.Videos, videoView{
				Title:     v.Title,
				URL:       baseURL + "/videos/" + v.ID,
				Thumbnail: v.ThumbnailURL,
				Duration:  FormatDuration(v.DurationSeconds),
				Summary:   summary,
			})
		}
		view.Channels = append(view.Channels, ch)
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("шаблон письма: %w", err)
	}
	return buf.String(), nil
}

// Subject тема письма.
func Subject(videoCount int) string {
	return fmt.Sprintf("%s from your channels", pluralVideos(videoCount))
}

// FormatDuration форматирует длительность как "1h 5m" или "12m".
func FormatDuration(seconds *int) string {
	if seconds == nil || *seconds <= 0 {
		return ""
	}
	h := *seconds / 3600
	m := (*seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// TruncateSummary обрезает саммари до limit символов с многоточием.
func TruncateSummary(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func summaryHTML(summary string, weekly bool) (template.HTML, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", nil
	}
	if weekly {
		summary = TruncateSummary(summary, weeklySummaryLimit)
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(summary), &buf); err != nil {
		return "", err
	}
	out := strings.TrimSpace(buf.String())
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return template.HTML(out), nil
}

func pluralVideos(n int) string {
	return fmt.Sprintf("%d new %s", n, plural(n, "video", "videos"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
