package channels

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

const maxInputLen = 500

// ErrInputInvalid пустой или слишком длинный ввод.
var ErrInputInvalid = &domain.ValidationError{Message: "channelInput must be between 1 and 500 characters"}

// RequestedEvent событие для скрапера о новой заявке.
type RequestedEvent struct {
	RequestID    string    `json:"request_id"`
	UserID       string    `json:"user_id"`
	ChannelInput string    `json:"channel_input"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Config настройки уведомлений о заявках.
type Config struct {
	AdminEmail string
	RoutingKey string
}

// Service принимает заявки на добавление каналов.
type Service struct {
	repo      domain.ChannelRequestRepo
	mailer    domain.Mailer
	publisher domain.EventPublisher
	cfg       Config
	log       zerolog.Logger
}

// NewService создаёт сервис заявок. mailer и publisher могут быть nil.
func NewService(repo domain.ChannelRequestRepo, mailer domain.Mailer, publisher domain.EventPublisher, cfg Config, logger zerolog.Logger) *Service {
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "channel.requested"
	}
	return &Service{repo: repo, mailer: mailer, publisher: publisher, cfg: cfg, log: logger}
}

// NormalizeInput обрезает пробелы и проверяет длину.
func NormalizeInput(input string) (string, error) {
	trim := strings.TrimSpace(input)
	if trim == "" || len([]rune(trim)) > maxInputLen {
		return "", ErrInputInvalid
	}
	return trim, nil
}

// Request сохраняет заявку, затем уведомляет администратора и скрапер.
// Ошибки уведомлений не влияют на ответ.
func (s *Service) Request(ctx context.Context, user domain.AuthUser, input string) (domain.ChannelRequest, error) {
	channelInput, err := NormalizeInput(input)
	if err != nil {
		return domain.ChannelRequest{}, err
	}
	req, err := s.repo.CreateChannelRequest(ctx, user.ID, channelInput)
	if err != nil {
		return domain.ChannelRequest{}, fmt.Errorf("сохранение заявки: %w", err)
	}
	logger := s.log.With().Str("user_id", user.ID).Str("request_id", req.ID).Logger()

	notifyCtx := context.WithoutCancel(ctx)
	if err := s.notifyAdmin(notifyCtx, user, req); err != nil {
		logger.Warn().Err(err).Msg("channels: не удалось уведомить администратора")
	}
	if s.publisher != nil {
		event := RequestedEvent{RequestID: req.ID, UserID: user.ID, ChannelInput: req.ChannelInput, RequestedAt: req.CreatedAt}
		if err := s.publisher.Publish(notifyCtx, s.cfg.RoutingKey, event); err != nil {
			logger.Warn().Err(err).Msg("channels: не удалось опубликовать событие")
		}
	}
	logger.Info().Str("channel_input", req.ChannelInput).Msg("channels: заявка принята")
	return req, nil
}

func (s *Service) notifyAdmin(ctx context.Context, user domain.AuthUser, req domain.ChannelRequest) error {
	if s.mailer == nil || s.cfg.AdminEmail == "" {
		return nil
	}
	subject := "New channel request: " + truncate(req.ChannelInput, 60)
	body := fmt.Sprintf(`<p>A user requested a new channel.</p>
<p><strong>Channel:</strong> %s<br><strong>User:</strong> %s<br><strong>Request ID:</strong> %s</p>`,
		html.EscapeString(req.ChannelInput), html.EscapeString(user.Email), html.EscapeString(req.ID))
	_, err := s.mailer.Send(ctx, s.cfg.AdminEmail, subject, body)
	if errors.Is(err, domain.ErrMailerNotConfigured) {
		return nil
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
