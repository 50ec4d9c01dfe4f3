package digest

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

// Sender отправляет дайджест одному получателю.
type Sender struct {
	repo    domain.DigestRepo
	mailer  domain.Mailer
	baseURL string
	log     zerolog.Logger
}

// NewSender создаёт отправителя. mailer может быть nil, если доставка не настроена.
func NewSender(repo domain.DigestRepo, mailer domain.Mailer, baseURL string, logger zerolog.Logger) *Sender {
	return &Sender{repo: repo, mailer: mailer, baseURL: baseURL, log: logger}
}

// SendToUser собирает и отправляет письмо. Ошибки не пробрасываются, а попадают в SendResult.
// Журнал и время последней отправки пишутся только после ответа провайдера.
func (s *Sender) SendToUser(ctx context.Context, r domain.DigestRecipient, freq domain.Frequency) domain.SendResult {
	logger := s.log.With().Str("user_id", r.UserID).Str("frequency", string(freq)).Logger()

	rows, err := s.repo.ListDigestVideos(ctx, r.UserID, freq.HoursBack())
	if err != nil {
		logger.Error().Err(err).Msg("digest: не удалось получить видео")
		return domain.SendResult{Success: false, VideoCount: 0, Error: err.Error()}
	}
	if len(rows) == 0 {
		logger.Debug().Msg("digest: новых видео нет, пропускаем")
		return domain.SendResult{Success: true, VideoCount: 0}
	}
	if s.mailer == nil {
		return domain.SendResult{Success: false, VideoCount: len(rows), Error: domain.ErrMailerNotConfigured.Error()}
	}

	groups := GroupByChannel(rows)
	html, err := Render(RenderInput{
		Groups:       groups,
		VideoCount:   len(rows),
		SummaryCount: CountSummaries(rows),
		Frequency:    freq,
		BaseURL:      s.baseURL,
	})
	if err != nil {
		logger.Error().Err(err).Msg("digest: не удалось собрать письмо")
		return domain.SendResult{Success: false, VideoCount: len(rows), Error: err.Error()}
	}

	outcome := domain.DigestSendOutcome{
		UserID:       r.UserID,
		Email:        r.Email,
		VideoCount:   len(rows),
		ChannelCount: len(groups),
	}
	messageID, sendErr := s.mailer.Send(ctx, r.Email, Subject(len(rows)), html)
	if sendErr != nil {
		outcome.Status = domain.DigestStatusFailed
		outcome.ErrorMessage = sendErr.Error()
		s.saveOutcome(ctx, logger, outcome)
		logger.Warn().Err(sendErr).Msg("digest: провайдер не принял письмо")
		res := domain.SendResult{Success: false, VideoCount: len(rows), Error: sendErr.Error()}
		var rl *domain.RateLimitError
		if errors.As(sendErr, &rl) {
			res.RateLimited = true
			res.RetryAfter = rl.RetryAfter
		}
		return res
	}

	outcome.Status = domain.DigestStatusSent
	outcome.ProviderMessageID = messageID
	s.saveOutcome(ctx, logger, outcome)
	// Письмо уже ушло: время отправки фиксируется даже при отменённом запросе.
	if err := s.repo.MarkDigestSent(context.WithoutCancel(ctx), r.UserID); err != nil {
		logger.Error().Err(err).Msg("digest: не удалось обновить время отправки")
	}
	logger.Info().Int("videos", len(rows)).Int("channels", len(groups)).Str("message_id", messageID).Msg("digest: письмо отправлено")
	return domain.SendResult{Success: true, VideoCount: len(rows)}
}

func (s *Sender) saveOutcome(ctx context.Context, logger zerolog.Logger, o domain.DigestSendOutcome) {
	// Журнал пишется и при отменённом запросе.
	if err := s.repo.SaveSendOutcome(context.WithoutCancel(ctx), o); err != nil {
		logger.Error().Err(err).Msg("digest: не удалось записать журнал отправки")
	}
}
