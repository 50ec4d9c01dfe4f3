package domain

import (
	"context"
	"time"
)

// DigestRepo выборки и журнал рассылки.
type DigestRepo interface {
	ListDigestRecipients(ctx context.Context, freq Frequency) ([]DigestRecipient, error)
	ListDigestVideos(ctx context.Context, userID string, hoursBack int) ([]DigestVideoRow, error)
	SaveSendOutcome(ctx context.Context, outcome DigestSendOutcome) error
	MarkDigestSent(ctx context.Context, userID string) error
}

// WeeklyDigestRepo публичный еженедельный дайджест.
type WeeklyDigestRepo interface {
	LatestWeeklyDigest(ctx context.Context) (WeeklyDigest, error)
	WeekThumbnails(ctx context.Context, from, to time.Time, limit int) ([]WeeklyThumbnail, int, error)
}

// UsageRepo учёт запросов к чату.
type UsageRepo interface {
	CountQueriesSince(ctx context.Context, userID string, since time.Time) (int, error)
	InsertQuery(ctx context.Context, userID string, rec QueryRecord) error
}

// VideoRepo доступ к транскриптам.
type VideoRepo interface {
	ListTranscripts(ctx context.Context, videoIDs []string) ([]VideoTranscript, error)
}

// ThreadRepo хранение чат-тредов.
type ThreadRepo interface {
	ListThreads(ctx context.Context, userID, videoID string, limit int) ([]Thread, error)
	CreateThread(ctx context.Context, userID, title string, videoIDs []string) (Thread, error)
	GetThread(ctx context.Context, userID, threadID string) (ThreadDetail, error)
	RenameThread(ctx context.Context, userID, threadID, title string) (Thread, error)
	DeleteThread(ctx context.Context, userID, threadID string) error
	AddMessage(ctx context.Context, userID, threadID string, role ChatRole, content string) (ThreadMessage, error)
	ReplaceThreadVideos(ctx context.Context, userID, threadID string, videoIDs []string) error
}

// ChannelRequestRepo заявки на каналы.
type ChannelRequestRepo interface {
	CreateChannelRequest(ctx context.Context, userID, input string) (ChannelRequest, error)
}

// Mailer отправляет одно письмо и возвращает id сообщения провайдера.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// Authenticator проверяет bearer-токен пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (AuthUser, error)
}

// RunLocker эксклюзивная блокировка прогона.
type RunLocker interface {
	// TryLock возвращает false, если блокировка уже занята.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// EventPublisher публикует событие во внешнюю шину.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
