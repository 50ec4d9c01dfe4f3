package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

type stubRunner struct {
	freqs []domain.Frequency
	err   error
}

func (s *stubRunner) ProcessAll(_ context.Context, freq domain.Frequency) (domain.RunResult, error) {
	s.freqs = append(s.freqs, freq)
	return domain.RunResult{Processed: 1, Sent: 1}, s.err
}

func TestNormalizeTimezone(t *testing.T) {
	cases := map[string]string{
		"":                 "UTC",
		"Europe/Moscow":    "Europe/Moscow",
		"europe/moscow":    "Europe/Moscow",
		"America/New York": "America/New_York",
	}
	for input, want := range cases {
		got, err := normalizeTimezone(input)
		if err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("для %q ожидали %s, получили %s", input, want, got)
		}
	}
	if _, err := normalizeTimezone("Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("ожидали ErrInvalidTimezone, получили %v", err)
	}
}

func TestNewServiceRejectsBadTimezone(t *testing.T) {
	if _, err := NewService(&stubRunner{}, "Nowhere/City", zerolog.Nop()); err == nil {
		t.Fatalf("ожидали ошибку часового пояса")
	}
}

func TestAddValidatesSpec(t *testing.T) {
	svc, err := NewService(&stubRunner{}, "UTC", zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.Add(context.Background(), "0 0 8 * * *", domain.FrequencyDaily); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.Add(context.Background(), "", domain.FrequencyWeekly); err != nil {
		t.Fatalf("пустое расписание отключает задачу: %v", err)
	}
	if err := svc.Add(context.Background(), "every morning", domain.FrequencyWeekly); err == nil {
		t.Fatalf("ожидали ошибку разбора расписания")
	}
}

func TestRunOnceTreatsBusyLockAsSkip(t *testing.T) {
	runner := &stubRunner{err: domain.ErrRunInProgress}
	svc, _ := NewService(runner, "UTC", zerolog.Nop())
	if _, err := svc.RunOnce(context.Background(), domain.FrequencyWeekly); err != nil {
		t.Fatalf("занятая блокировка не ошибка: %v", err)
	}
	runner.err = errors.New("db down")
	if _, err := svc.RunOnce(context.Background(), domain.FrequencyDaily); err == nil {
		t.Fatalf("ожидали ошибку прогона")
	}
	if len(runner.freqs) != 2 || runner.freqs[0] != domain.FrequencyWeekly {
		t.Fatalf("неожиданные вызовы: %v", runner.freqs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _ := NewService(&stubRunner{}, "UTC", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
}
