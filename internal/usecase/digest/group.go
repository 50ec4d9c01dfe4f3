package digest

import (
	"strings"

	"decompress/internal/domain"
)

// GroupByChannel группирует видео по каналам в порядке первого появления канала.
// Порядок видео внутри группы совпадает с порядком строк выборки.
func GroupByChannel(rows []domain.DigestVideoRow) []domain.ChannelGroup {
	order := make([]string, 0)
	groups := make(map[string]*domain.ChannelGroup)

	for _, row := range rows {
		group, ok := groups[row.ChannelID]
		if !ok {
			order = append(order, row.ChannelID)
			group = &domain.ChannelGroup{
				ChannelID:           row.ChannelID,
				ChannelName:         row.ChannelName,
				ChannelThumbnailURL: row.ChannelThumbnailURL,
			}
			groups[row.ChannelID] = group
		}
		group.Videos = append(group.Videos, domain.DigestVideo{
			ID:              row.VideoID,
			Title:           row.Title,
			ThumbnailURL:    row.ThumbnailURL,
			DurationSeconds: row.DurationSeconds,
			PublishedAt:     row.PublishedAt,
			Summary:         row.Summary,
		})
	}

	out := make([]domain.ChannelGroup, 0, len(order))
	for _, id := range order {
		out = append(out, *groups[id])
	}
	return out
}

// CountSummaries считает видео с непустым саммари.
func CountSummaries(rows []domain.DigestVideoRow) int {
	n := 0
	for _, row := range rows {
		if strings.TrimSpace(row.Summary) != "" {
			n++
		}
	}
	return n
}
