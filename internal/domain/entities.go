package domain

import (
	"fmt"
	"strings"
	"time"
)

// Frequency задаёт периодичность дайджеста.
type Frequency string

const (
	// FrequencyDaily ежедневный дайджест.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly еженедельный дайджест.
	FrequencyWeekly Frequency = "weekly"
)

// ParseFrequency разбирает значение периодичности. Пустая строка означает daily.
func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	default:
		return "", fmt.Errorf("неизвестная периодичность %q", raw)
	}
}

// HoursBack возвращает окно выборки видео для периодичности.
func (f Frequency) HoursBack() int {
	if f == FrequencyWeekly {
		return 7 * 24
	}
	return 24
}

// DigestRecipient пользователь, которому сегодня положен дайджест.
type DigestRecipient struct {
	UserID           string
	Email            string
	LastDigestSentAt *time.Time
}

// DigestVideoRow строка выборки get_digest_videos.
type DigestVideoRow struct {
	VideoID             string
	Title               string
	ThumbnailURL        string
	DurationSeconds     *int
	PublishedAt         time.Time
	Summary             string
	ViewCount           *int64
	ChannelID           string
	ChannelName         string
	ChannelThumbnailURL string
}

// DigestVideo видео внутри группы канала.
type DigestVideo struct {
	ID              string
	Title           string
	ThumbnailURL    string
	DurationSeconds *int
	PublishedAt     time.Time
	Summary         string
}

// ChannelGroup видео одного канала в порядке выборки.
type ChannelGroup struct {
	ChannelID           string
	ChannelName         string
	ChannelThumbnailURL string
	Videos              []DigestVideo
}

// DigestStatus статус доставки письма.
type DigestStatus string

const (
	DigestStatusSent   DigestStatus = "sent"
	DigestStatusFailed DigestStatus = "failed"
)

// DigestSendOutcome запись журнала digest_email_logs.
type DigestSendOutcome struct {
	UserID            string
	Email             string
	VideoCount        int
	ChannelCount      int
	Status            DigestStatus
	ErrorMessage      string
	ProviderMessageID string
}

// SendResult результат отправки одному получателю.
type SendResult struct {
	Success    bool   `json:"success"`
	VideoCount int    `json:"videoCount"`
	Error      string `json:"error,omitempty"`
	// RateLimited выставляется, когда провайдер отказал по лимиту частоты.
	RateLimited bool          `json:"-"`
	RetryAfter  time.Duration `json:"-"`
}

// RunResult итог прогона рассылки.
type RunResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// QueryUsage использование чата за текущий месяц.
type QueryUsage struct {
	QueriesUsed      int  `json:"queriesUsed"`
	QueriesRemaining int  `json:"queriesRemaining"`
	LimitReached     bool `json:"limitReached"`
}

// QueryRecord запись ai_queries об одном ответе модели.
type QueryRecord struct {
	Provider     Provider
	Model        string
	InputTokens  int
	OutputTokens int
	VideoIDs     []string
}

// AuthUser аутентифицированный пользователь.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VideoTranscript транскрипт видео для контекста чата.
type VideoTranscript struct {
	ID         string
	Title      string
	Transcript string
}

// Thread чат-тред пользователя.
type Thread struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	VideoCount int       `json:"video_count"`
}

// ThreadMessage сообщение в треде.
type ThreadMessage struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadVideo видео, прикреплённое к треду.
type ThreadVideo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceName string `json:"source_name"`
}

// ThreadDetail тред с сообщениями и видео.
type ThreadDetail struct {
	Thread
	Messages []ThreadMessage `json:"messages"`
	Videos   []ThreadVideo   `json:"videos"`
}

// ChannelRequest заявка на добавление канала.
type ChannelRequest struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	ChannelInput string    `json:"channel_input"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"-"`
}

// WeeklyDigest еженедельный текстовый дайджест.
type WeeklyDigest struct {
	ID        string
	WeekStart time.Time
	Content   string
	CreatedAt time.Time
}

// WeeklyThumbnail превью видео недели.
type WeeklyThumbnail struct {
	VideoID      string `json:"id"`
	ThumbnailURL string `json:"thumbnail_url"`
}
