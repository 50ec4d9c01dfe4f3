package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Runner запускает рассылку одной периодичности.
type Runner interface {
	ProcessAll(ctx context.Context, freq domain.Frequency) (domain.RunResult, error)
}

// Service запускает рассылки по cron-расписанию.
type Service struct {
	runner Runner
	cron   *cron.Cron
	loc    *time.Location
	log    zerolog.Logger
}

// NewService создаёт планировщик. Расписания считаются в часовом поясе timezone.
// Пересекающиеся запуски одной задачи пропускаются.
func NewService(runner Runner, timezone string, logger zerolog.Logger) (*Service, error) {
	name, err := normalizeTimezone(timezone)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", timezone, err)
	}
	loc, _ := time.LoadLocation(name)
	cl := cronLogger{log: logger}
	return &Service{
		runner: runner,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc: loc,
		log: logger,
	}, nil
}

// Add регистрирует рассылку freq по расписанию spec (с секундами).
func (s *Service) Add(ctx context.Context, spec string, freq domain.Frequency) error {
	if strings.TrimSpace(spec) == "" {
		s.log.Info().Str("frequency", string(freq)).Msg("schedule: расписание не задано, задача отключена")
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx, freq); err != nil {
			s.log.Error().Err(err).Str("frequency", string(freq)).Msg("schedule: прогон завершился ошибкой")
		}
	})
	if err != nil {
		return fmt.Errorf("расписание %s %q: %w", freq, spec, err)
	}
	s.log.Info().Str("frequency", string(freq)).Str("spec", spec).Str("tz", s.loc.String()).Msg("schedule: задача добавлена")
	return nil
}

// RunOnce выполняет рассылку сразу. Занятая блокировка не считается ошибкой.
func (s *Service) RunOnce(ctx context.Context, freq domain.Frequency) (domain.RunResult, error) {
	start := time.Now()
	result, err := s.runner.ProcessAll(ctx, freq)
	if errors.Is(err, domain.ErrRunInProgress) {
		s.log.Info().Str("frequency", string(freq)).Msg("schedule: прогон уже идёт, пропускаем")
		return result, nil
	}
	if err != nil {
		return result, err
	}
	s.log.Info().
		Str("frequency", string(freq)).
		Dur("took", time.Since(start)).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("schedule: прогон выполнен")
	return result, nil
}

// Run запускает cron и блокируется до отмены ctx, затем ждёт текущие задачи.
func (s *Service) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

// cronLogger пишет события cron в zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// normalizeTimezone принимает имена вроде "europe/moscow" или "America/New York".
func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "UTC", nil
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	parts := strings.Split(strings.ToLower(candidate), "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}
