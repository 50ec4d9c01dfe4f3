package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"decompress/internal/domain"
)

const weeklyThumbnailLimit = 10

// WeeklyView публичная карточка еженедельного дайджеста.
type WeeklyView struct {
	ID         string                   `json:"id"`
	WeekStart  time.Time                `json:"week_start"`
	Snippet    string                   `json:"snippet"`
	Content    string                   `json:"content"`
	Thumbnails []domain.WeeklyThumbnail `json:"thumbnails"`
	VideoCount int                      `json:"video_count"`
}

// Weekly отдаёт последний еженедельный дайджест.
type Weekly struct {
	repo domain.WeeklyDigestRepo
}

// NewWeekly создаёт сервис.
func NewWeekly(repo domain.WeeklyDigestRepo) *Weekly {
	return &Weekly{repo: repo}
}

// Latest возвращает nil без ошибки, если дайджестов ещё нет.
func (w *Weekly) Latest(ctx context.Context) (*WeeklyView, error) {
	d, err := w.repo.LatestWeeklyDigest(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("последний дайджест: %w", err)
	}
	thumbs, total, err := w.repo.WeekThumbnails(ctx, d.WeekStart, d.WeekStart.AddDate(0, 0, 7), weeklyThumbnailLimit)
	if err != nil {
		return nil, fmt.Errorf("превью недели: %w", err)
	}
	if thumbs == nil {
		thumbs = []domain.WeeklyThumbnail{}
	}
	return &WeeklyView{
		ID:         d.ID,
		WeekStart:  d.WeekStart,
		Snippet:    DigestSnippet(d.Content),
		Content:    d.Content,
		Thumbnails: thumbs,
		VideoCount: total,
	}, nil
}
