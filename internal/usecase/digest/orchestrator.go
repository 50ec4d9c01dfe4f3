package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// RecipientSender отправляет дайджест одному получателю.
type RecipientSender interface {
	SendToUser(ctx context.Context, r domain.DigestRecipient, freq domain.Frequency) domain.SendResult
}

// RecipientSource выдаёт список получателей.
type RecipientSource interface {
	ListDigestRecipients(ctx context.Context, freq domain.Frequency) ([]domain.DigestRecipient, error)
}

// OrchestratorConfig параметры темпа рассылки.
type OrchestratorConfig struct {
	BatchSize   int
	Concurrency int
	BatchDelay  time.Duration
	MaxDelay    time.Duration
	LockTTL     time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Concurrency <= 0 || c.Concurrency > c.BatchSize {
		c.Concurrency = c.BatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Minute
	}
	return c
}

// Orchestrator проводит рассылку по всем получателям пачками.
type Orchestrator struct {
	source RecipientSource
	sender RecipientSender
	locker domain.RunLocker
	cfg    OrchestratorConfig
	log    zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator создаёт оркестратор. locker может быть nil.
func NewOrchestrator(source RecipientSource, sender RecipientSender, locker domain.RunLocker, cfg OrchestratorConfig, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		source: source,
		sender: sender,
		locker: locker,
		cfg:    cfg.withDefaults(),
		log:    logger,
		sleep:  sleepCtx,
	}
}

// ProcessAll рассылает дайджест всем получателям периодичности.
// Ошибка одного получателя не прерывает прогон. Ошибку возвращает только
// невозможность получить список, занятая блокировка или отмена контекста.
func (o *Orchestrator) ProcessAll(ctx context.Context, freq domain.Frequency) (domain.RunResult, error) {
	result := domain.RunResult{Errors: []string{}}

	if o.locker != nil {
		unlock, ok, err := o.locker.TryLock(ctx, "digest:run:"+string(freq), o.cfg.LockTTL)
		if err != nil {
			o.log.Warn().Err(err).Msg("digest: блокировка недоступна, продолжаем без неё")
		} else if !ok {
			return result, domain.ErrRunInProgress
		} else {
			defer unlock()
		}
	}

	start := time.Now()
	defer func() { metrics.ObserveDigestRun(string(freq), time.Since(start)) }()

	recipients, err := o.source.ListDigestRecipients(ctx, freq)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, fmt.Errorf("получение получателей: %w", err)
	}
	if len(recipients) == 0 {
		o.log.Info().Str("frequency", string(freq)).Msg("digest: получателей нет")
		return result, nil
	}

	pacer := o.newPacer()
	rateLimited := false
	var retryAfter time.Duration
	for i := 0; i < len(recipients); i += o.cfg.BatchSize {
		if i > 0 {
			delay := o.cfg.BatchDelay
			if rateLimited {
				delay = max(delay, retryAfter, pacer.NextBackOff())
				o.log.Warn().Dur("delay", delay).Msg("digest: провайдер ограничил частоту, увеличиваем паузу")
			} else {
				pacer.Reset()
			}
			delay = min(delay, o.cfg.MaxDelay)
			if err := o.sleep(ctx, delay); err != nil {
				return result, err
			}
		}
		end := min(i+o.cfg.BatchSize, len(recipients))
		rateLimited, retryAfter = o.runBatch(ctx, recipients[i:end], freq, &result)
	}

	o.log.Info().
		Str("frequency", string(freq)).
		Int("processed", result.Processed).
		Int("sent", result.Sent).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("digest: прогон завершён")
	return result, nil
}

// runBatch отправляет пачку параллельно и учитывает исходы в порядке пачки.
func (o *Orchestrator) runBatch(ctx context.Context, batch []domain.DigestRecipient, freq domain.Frequency, result *domain.RunResult) (bool, time.Duration) {
	outcomes := make([]domain.SendResult, len(batch))
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for idx, r := range batch {
		g.Go(func() error {
			outcomes[idx] = o.sender.SendToUser(ctx, r, freq)
			return nil
		})
	}
	_ = g.Wait()

	var (
		rateLimited bool
		retryAfter  time.Duration
	)
	for idx, out := range outcomes {
		result.Processed++
		switch {
		case !out.Success:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", batch[idx].Email, out.Error))
			metrics.IncDigestRecipient(string(freq), "failed")
			if out.RateLimited {
				rateLimited = true
				retryAfter = max(retryAfter, out.RetryAfter)
			}
		case out.VideoCount == 0:
			result.Skipped++
			metrics.IncDigestRecipient(string(freq), "skipped")
		default:
			result.Sent++
			metrics.IncDigestRecipient(string(freq), "sent")
		}
	}
	return rateLimited, retryAfter
}

func (o *Orchestrator) newPacer() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(o.cfg.BatchDelay, 100*time.Millisecond)
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = o.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRunInProgress сообщает, что прогон пропущен из-за чужой блокировки.
func IsRunInProgress(err error) bool {
	return errors.Is(err, domain.ErrRunInProgress)
}
