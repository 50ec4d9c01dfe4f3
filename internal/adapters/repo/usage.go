package repo

import (
	"context"
	"time"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// CountQueriesSince считает запросы к чату начиная с since.
func (p *Postgres) CountQueriesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var n int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM ai_queries WHERE user_id = $1::uuid AND created_at >= $2
`, userID, since).Scan(&n)
	metrics.ObserveNetworkRequest("postgres", "ai_queries_count", "ai_queries", start, err)
	return n, err
}

// InsertQuery сохраняет запись об ответе модели.
func (p *Postgres) InsertQuery(ctx context.Context, userID string, rec domain.QueryRecord) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO ai_queries (user_id, provider, model, input_tokens, output_tokens, video_ids)
VALUES ($1::uuid, $2, $3, $4, $5, $6::text[]::uuid[])
`, userID, string(rec.Provider), rec.Model, rec.InputTokens, rec.OutputTokens, nonNilIDs(rec.VideoIDs))
	metrics.ObserveNetworkRequest("postgres", "ai_queries_insert", "ai_queries", start, err)
	return err
}

// ListTranscripts возвращает транскрипты в порядке переданных id.
func (p *Postgres) ListTranscripts(ctx context.Context, videoIDs []string) ([]domain.VideoTranscript, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id::text, coalesce(title, ''), coalesce(transcript, '')
FROM videos
WHERE id = ANY($1::text[]::uuid[])
ORDER BY array_position($1::text[], id::text)
`, videoIDs)
	metrics.ObserveNetworkRequest("postgres", "videos_transcripts", "videos", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VideoTranscript
	for rows.Next() {
		var v domain.VideoTranscript
		if err := rows.Scan(&v.ID, &v.Title, &v.Transcript); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
