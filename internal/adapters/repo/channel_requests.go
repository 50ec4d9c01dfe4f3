package repo

import (
	"context"
	"time"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// CreateChannelRequest сохраняет заявку на канал со статусом по умолчанию.
func (p *Postgres) CreateChannelRequest(ctx context.Context, userID, input string) (domain.ChannelRequest, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	r := domain.ChannelRequest{UserID: userID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO channel_requests (user_id, channel_input)
VALUES ($1::uuid, $2)
RETURNING id::text, channel_input, status, created_at
`, userID, input).Scan(&r.ID, &r.ChannelInput, &r.Status, &r.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "channel_requests_insert", "channel_requests", start, err)
	return r, err
}
