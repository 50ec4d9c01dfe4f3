package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

const threadColumns = "t.id::text, t.user_id::text, t.title, t.created_at, t.updated_at"

// ListThreads возвращает треды пользователя, при videoID только связанные с этим видео.
func (p *Postgres) ListThreads(ctx context.Context, userID, videoID string, limit int) ([]domain.Thread, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := p.threadListQuery(userID, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "chat_threads_list", "chat_threads", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	threads := []domain.Thread{}
	for rows.Next() {
		var t domain.Thread
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.CreatedAt, &t.UpdatedAt, &t.VideoCount); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (p *Postgres) threadListQuery(userID, videoID string, limit int) (string, []any, error) {
	q := p.sb.Select(threadColumns, "(SELECT count(*) FROM chat_thread_videos v WHERE v.thread_id = t.id)").
		From("chat_threads t").
		Where("t.user_id = ?::uuid", userID).
		OrderBy("t.updated_at DESC").
		Limit(uint64(limit))
	if videoID != "" {
		q = q.Where(sq.Expr("EXISTS (SELECT 1 FROM chat_thread_videos f WHERE f.thread_id = t.id AND f.video_id = ?::uuid)", videoID))
	}
	return q.ToSql()
}

// CreateThread создаёт тред и привязывает видео в одной транзакции.
func (p *Postgres) CreateThread(ctx context.Context, userID, title string, videoIDs []string) (domain.Thread, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.Begin(ctx)
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "chat_threads", start, err)
	if err != nil {
		return domain.Thread{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var t domain.Thread
	start = time.Now()
	err = tx.QueryRow(ctx, `
INSERT INTO chat_threads (user_id, title) VALUES ($1::uuid, $2)
RETURNING id::text, user_id::text, title, created_at, updated_at
`, userID, title).Scan(&t.ID, &t.UserID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "chat_threads_insert", "chat_threads", start, err)
	if err != nil {
		return domain.Thread{}, err
	}
	if err := insertThreadVideos(ctx, tx, t.ID, videoIDs); err != nil {
		return domain.Thread{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Thread{}, err
	}
	t.VideoCount = len(videoIDs)
	return t, nil
}

// GetThread возвращает тред с сообщениями и видео.
func (p *Postgres) GetThread(ctx context.Context, userID, threadID string) (domain.ThreadDetail, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var d domain.ThreadDetail
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT `+threadColumns+`
FROM chat_threads t
WHERE t.id = $1::uuid AND t.user_id = $2::uuid
`, threadID, userID).Scan(&d.ID, &d.UserID, &d.Title, &d.CreatedAt, &d.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "chat_threads_get", "chat_threads", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ThreadDetail{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ThreadDetail{}, err
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id::text, thread_id::text, role, content, created_at
FROM chat_messages
WHERE thread_id = $1::uuid
ORDER BY created_at ASC
`, threadID)
	metrics.ObserveNetworkRequest("postgres", "chat_messages_list", "chat_messages", start, err)
	if err != nil {
		return domain.ThreadDetail{}, err
	}
	d.Messages = []domain.ThreadMessage{}
	for rows.Next() {
		var m domain.ThreadMessage
		var role string
		if err := rows.Scan(&m.ID, &m.ThreadID, &role, &m.Content, &m.CreatedAt); err != nil {
			rows.Close()
			return domain.ThreadDetail{}, err
		}
		m.Role = domain.ChatRole(role)
		d.Messages = append(d.Messages, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.ThreadDetail{}, err
	}

	start = time.Now()
	rows, err = p.pool.Query(ctx, `
SELECT v.id::text, coalesce(v.title, ''), coalesce(s.name, '')
FROM chat_thread_videos tv
JOIN videos v ON v.id = tv.video_id
LEFT JOIN sources s ON s.id = v.source_id
WHERE tv.thread_id = $1::uuid
ORDER BY tv.created_at ASC
`, threadID)
	metrics.ObserveNetworkRequest("postgres", "chat_thread_videos_list", "chat_thread_videos", start, err)
	if err != nil {
		return domain.ThreadDetail{}, err
	}
	defer rows.Close()
	d.Videos = []domain.ThreadVideo{}
	for rows.Next() {
		var v domain.ThreadVideo
		if err := rows.Scan(&v.ID, &v.Title, &v.SourceName); err != nil {
			return domain.ThreadDetail{}, err
		}
		d.Videos = append(d.Videos, v)
	}
	d.VideoCount = len(d.Videos)
	return d, rows.Err()
}

// RenameThread меняет заголовок треда.
func (p *Postgres) RenameThread(ctx context.Context, userID, threadID, title string) (domain.Thread, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var t domain.Thread
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
UPDATE chat_threads SET title = $3, updated_at = now()
WHERE id = $1::uuid AND user_id = $2::uuid
RETURNING id::text, user_id::text, title, created_at, updated_at
`, threadID, userID, title).Scan(&t.ID, &t.UserID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "chat_threads_update", "chat_threads", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Thread{}, domain.ErrNotFound
	}
	return t, err
}

// DeleteThread удаляет тред вместе с сообщениями.
func (p *Postgres) DeleteThread(ctx context.Context, userID, threadID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM chat_threads WHERE id = $1::uuid AND user_id = $2::uuid`, threadID, userID)
	metrics.ObserveNetworkRequest("postgres", "chat_threads_delete", "chat_threads", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddMessage добавляет сообщение и двигает updated_at треда.
func (p *Postgres) AddMessage(ctx context.Context, userID, threadID string, role domain.ChatRole, content string) (domain.ThreadMessage, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var m domain.ThreadMessage
	var roleRaw string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
WITH owned AS (
	UPDATE chat_threads SET updated_at = now()
	WHERE id = $1::uuid AND user_id = $2::uuid
	RETURNING id
)
INSERT INTO chat_messages (thread_id, role, content)
SELECT id, $3, $4 FROM owned
RETURNING id::text, thread_id::text, role, content, created_at
`, threadID, userID, string(role), content).Scan(&m.ID, &m.ThreadID, &roleRaw, &m.Content, &m.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "chat_messages_insert", "chat_messages", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ThreadMessage{}, domain.ErrNotFound
	}
	m.Role = domain.ChatRole(roleRaw)
	return m, err
}

// ReplaceThreadVideos заменяет набор видео треда.
func (p *Postgres) ReplaceThreadVideos(ctx context.Context, userID, threadID string, videoIDs []string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start := time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE chat_threads SET updated_at = now() WHERE id = $1::uuid AND user_id = $2::uuid
`, threadID, userID)
	metrics.ObserveNetworkRequest("postgres", "chat_threads_touch", "chat_threads", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	start = time.Now()
	_, err = tx.Exec(ctx, `DELETE FROM chat_thread_videos WHERE thread_id = $1::uuid`, threadID)
	metrics.ObserveNetworkRequest("postgres", "chat_thread_videos_delete", "chat_thread_videos", start, err)
	if err != nil {
		return err
	}
	if err := insertThreadVideos(ctx, tx, threadID, videoIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertThreadVideos(ctx context.Context, tx pgx.Tx, threadID string, videoIDs []string) error {
	if len(videoIDs) == 0 {
		return nil
	}
	q := sq.Insert("chat_thread_videos").Columns("thread_id", "video_id").PlaceholderFormat(sq.Dollar)
	for _, id := range videoIDs {
		q = q.Values(sq.Expr("?::uuid", threadID), sq.Expr("?::uuid", id))
	}
	q = q.Suffix("ON CONFLICT DO NOTHING")
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}
	start := time.Now()
	_, err = tx.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "chat_thread_videos_insert", "chat_thread_videos", start, err)
	return err
}
