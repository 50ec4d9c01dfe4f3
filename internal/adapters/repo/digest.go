package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// ListDigestRecipients возвращает пользователей, которым положен дайджест.
func (p *Postgres) ListDigestRecipients(ctx context.Context, freq domain.Frequency) ([]domain.DigestRecipient, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id::text, email, last_digest_sent_at
FROM get_users_for_digest($1)
`, string(freq))
	metrics.ObserveNetworkRequest("postgres", "get_users_for_digest", "rpc", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DigestRecipient
	for rows.Next() {
		var (
			r        domain.DigestRecipient
			email    sql.NullString
			lastSent sql.NullTime
		)
		if err := rows.Scan(&r.UserID, &email, &lastSent); err != nil {
			return nil, err
		}
		r.Email = stringOrEmpty(email)
		if lastSent.Valid {
			ts := lastSent.Time
			r.LastDigestSentAt = &ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDigestVideos возвращает видео подписок пользователя за окно hoursBack.
func (p *Postgres) ListDigestVideos(ctx context.Context, userID string, hoursBack int) ([]domain.DigestVideoRow, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT video_id::text, title, thumbnail_url, duration_seconds, published_at, summary,
       view_count, channel_id::text, channel_name, channel_thumbnail
FROM get_digest_videos($1::uuid, $2)
`, userID, hoursBack)
	metrics.ObserveNetworkRequest("postgres", "get_digest_videos", "rpc", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DigestVideoRow
	for rows.Next() {
		var (
			v            domain.DigestVideoRow
			title        sql.NullString
			thumb        sql.NullString
			duration     sql.NullInt32
			published    sql.NullTime
			summary      sql.NullString
			views        sql.NullInt64
			channelName  sql.NullString
			channelThumb sql.NullString
		)
		if err := rows.Scan(&v.VideoID, &title, &thumb, &duration, &published, &summary, &views, &v.ChannelID, &channelName, &channelThumb); err != nil {
			return nil, err
		}
		v.Title = stringOrEmpty(title)
		v.ThumbnailURL = stringOrEmpty(thumb)
		if duration.Valid {
			d := int(duration.Int32)
			v.DurationSeconds = &d
		}
		if published.Valid {
			v.PublishedAt = published.Time
		}
		v.Summary = stringOrEmpty(summary)
		if views.Valid {
			n := views.Int64
			v.ViewCount = &n
		}
		v.ChannelName = stringOrEmpty(channelName)
		v.ChannelThumbnailURL = stringOrEmpty(channelThumb)
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveSendOutcome пишет строку журнала digest_email_logs.
func (p *Postgres) SaveSendOutcome(ctx context.Context, o domain.DigestSendOutcome) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO digest_email_logs (user_id, recipient_email, video_count, channel_count, status, error_message, resend_email_id)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
`, o.UserID, o.Email, o.VideoCount, o.ChannelCount, string(o.Status), nullString(o.ErrorMessage), nullString(o.ProviderMessageID))
	metrics.ObserveNetworkRequest("postgres", "digest_email_logs_insert", "digest_email_logs", start, err)
	return err
}

// MarkDigestSent обновляет время последней отправки.
func (p *Postgres) MarkDigestSent(ctx context.Context, userID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `SELECT update_last_digest_sent($1::uuid)`, userID)
	metrics.ObserveNetworkRequest("postgres", "update_last_digest_sent", "rpc", start, err)
	return err
}

// LatestWeeklyDigest возвращает последний еженедельный дайджест.
func (p *Postgres) LatestWeeklyDigest(ctx context.Context) (domain.WeeklyDigest, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var d domain.WeeklyDigest
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id::text, week_start, content, created_at
FROM digests
ORDER BY week_start DESC
LIMIT 1
`).Scan(&d.ID, &d.WeekStart, &d.Content, &d.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "digests_latest", "digests", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WeeklyDigest{}, domain.ErrNotFound
	}
	return d, err
}

// WeekThumbnails возвращает превью видео за неделю и их общее количество.
func (p *Postgres) WeekThumbnails(ctx context.Context, from, to time.Time, limit int) ([]domain.WeeklyThumbnail, int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var total int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM videos WHERE published_at >= $1 AND published_at < $2
`, from, to).Scan(&total)
	metrics.ObserveNetworkRequest("postgres", "videos_week_count", "videos", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт видео недели: %w", err)
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id::text, thumbnail_url
FROM videos
WHERE published_at >= $1 AND published_at < $2 AND thumbnail_url IS NOT NULL
ORDER BY published_at DESC
LIMIT $3
`, from, to, limit)
	metrics.ObserveNetworkRequest("postgres", "videos_week_thumbnails", "videos", start, err)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.WeeklyThumbnail
	for rows.Next() {
		var t domain.WeeklyThumbnail
		if err := rows.Scan(&t.VideoID, &t.ThumbnailURL); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}
