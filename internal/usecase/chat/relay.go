package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// DefaultMaxOutputTokens потолок длины ответа.
const DefaultMaxOutputTokens = 1024

// QuotaGate квота запросов пользователя.
type QuotaGate interface {
	Usage(ctx context.Context, userID string) domain.QueryUsage
	Record(ctx context.Context, userID string, rec domain.QueryRecord)
}

// ModelResolver выбирает модель по провайдеру.
type ModelResolver interface {
	Resolve(p domain.Provider) (domain.ChatModel, error)
}

// EventWriter принимает события UI-потока.
type EventWriter interface {
	WriteEvent(ev domain.StreamEvent) error
	Close() error
}

// QuotaExceededError лимит исчерпан, запрос к модели не выполнялся.
type QuotaExceededError struct {
	Usage domain.QueryUsage
}

func (e *QuotaExceededError) Error() string { return domain.ErrQuotaExceeded.Error() }

// Is позволяет сравнивать через errors.Is(err, domain.ErrQuotaExceeded).
func (e *QuotaExceededError) Is(target error) bool { return target == domain.ErrQuotaExceeded }

// Relay пересылает ответ модели клиенту потоком событий.
type Relay struct {
	quota     QuotaGate
	models    ModelResolver
	videos    domain.VideoRepo
	maxTokens int
	newID     func() string
	log       zerolog.Logger
}

// NewRelay создаёт ретранслятор чата.
func NewRelay(quota QuotaGate, models ModelResolver, videos domain.VideoRepo, maxTokens int, logger zerolog.Logger) *Relay {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return &Relay{quota: quota, models: models, videos: videos, maxTokens: maxTokens, newID: uuid.NewString, log: logger}
}

// Session подготовленный запрос: квота проверена, модель выбрана, контекст собран.
type Session struct {
	relay    *Relay
	user     domain.AuthUser
	model    domain.ChatModel
	request  domain.LLMRequest
	videoIDs []string
	usage    domain.QueryUsage
}

// Prepare проверяет запрос и квоту. До возврата Session клиенту ничего не пишется.
func (r *Relay) Prepare(ctx context.Context, user domain.AuthUser, req domain.ChatRequest) (*Session, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	usage := r.quota.Usage(ctx, user.ID)
	if usage.LimitReached {
		metrics.QuotaRejectionsTotal.Inc()
		return nil, &QuotaExceededError{Usage: usage}
	}
	model, err := r.models.Resolve(req.Provider)
	if err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}
	messages := NormalizeMessages(req.Messages)
	if len(messages) == 0 {
		return nil, &domain.ValidationError{Message: "messages must contain text"}
	}

	var transcriptContext string
	if len(req.VideoIDs) > 0 {
		videos, err := r.videos.ListTranscripts(ctx, req.VideoIDs)
		if err != nil {
			return nil, fmt.Errorf("загрузка транскриптов: %w", err)
		}
		transcriptContext = BuildContext(videos)
	}

	return &Session{
		relay: r,
		user:  user,
		model: model,
		request: domain.LLMRequest{
			System:    SystemPrompt(transcriptContext),
			Messages:  messages,
			MaxTokens: r.maxTokens,
		},
		videoIDs: req.VideoIDs,
		usage:    usage,
	}, nil
}

// RemainingAfter остаток запросов с учётом текущего.
func (s *Session) RemainingAfter() int {
	return max(s.usage.QueriesRemaining-1, 0)
}

// Run стримит ответ. Конверт событий закрывается и при ошибке модели:
// text-end, затем finish с причиной error. Ошибка провайдера не учитывается в квоте,
// обрыв клиента посреди генерации учитывается.
func (s *Session) Run(ctx context.Context, w EventWriter) error {
	r := s.relay
	provider := string(s.model.Provider())
	logger := r.log.With().Str("user_id", s.user.ID).Str("provider", provider).Str("model", s.model.Model()).Logger()

	messageID := r.newID()
	partID := r.newID()
	if err := w.WriteEvent(domain.StreamEvent{Type: domain.EventStart, MessageID: messageID}); err != nil {
		return fmt.Errorf("запись start: %w", err)
	}
	if err := w.WriteEvent(domain.StreamEvent{Type: domain.EventTextStart, ID: partID}); err != nil {
		return fmt.Errorf("запись text-start: %w", err)
	}

	var writeErr error
	result, streamErr := s.model.Stream(ctx, s.request, func(delta string) error {
		if err := w.WriteEvent(domain.StreamEvent{Type: domain.EventTextDelta, ID: partID, Delta: delta}); err != nil {
			writeErr = err
			return err
		}
		return nil
	})

	finish := result.FinishReason
	if streamErr != nil {
		finish = "error"
	} else if finish == "" {
		finish = "stop"
	}
	endErr := errors.Join(
		w.WriteEvent(domain.StreamEvent{Type: domain.EventTextEnd, ID: partID}),
		w.WriteEvent(domain.StreamEvent{Type: domain.EventFinish, FinishReason: finish}),
		w.Close(),
	)

	if streamErr != nil && writeErr != nil {
		// Модель уже отвечала: запрос расходует квоту, даже если клиент ушёл.
		metrics.IncChatRequest(provider, "client_closed")
		r.quotaRecord(ctx, s, result)
		logger.Warn().Err(writeErr).Msg("chat: клиент отключился во время генерации")
		return writeErr
	}
	if streamErr != nil {
		metrics.IncChatRequest(provider, "error")
		logger.Error().Err(streamErr).Msg("chat: ошибка генерации")
		return streamErr
	}
	metrics.IncChatRequest(provider, "success")
	r.quotaRecord(ctx, s, result)
	if endErr != nil {
		logger.Warn().Err(endErr).Msg("chat: клиент отключился до конца потока")
	}
	return nil
}

func (r *Relay) quotaRecord(ctx context.Context, s *Session, result domain.LLMResult) {
	r.quota.Record(context.WithoutCancel(ctx), s.user.ID, domain.QueryRecord{
		Provider:     s.model.Provider(),
		Model:        s.model.Model(),
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		VideoIDs:     s.videoIDs,
	})
}

// Usage возвращает использование для GET /api/chat/usage.
func (r *Relay) Usage(ctx context.Context, userID string) domain.QueryUsage {
	return r.quota.Usage(ctx, userID)
}
