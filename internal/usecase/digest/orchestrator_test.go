package digest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

type stubSender struct {
	mu       sync.Mutex
	results  map[string]domain.SendResult
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	hold     time.Duration
}

func (s *stubSender) SendToUser(_ context.Context, r domain.DigestRecipient, _ domain.Frequency) domain.SendResult {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.hold > 0 {
		time.Sleep(s.hold)
	}
	s.inFlight.Add(-1)

	s.mu.Lock()
	s.calls = append(s.calls, r.UserID)
	s.mu.Unlock()
	if res, ok := s.results[r.UserID]; ok {
		return res
	}
	return domain.SendResult{Success: true, VideoCount: 1}
}

type stubLocker struct {
	busy     bool
	unlocked bool
}

func (l *stubLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if l.busy {
		return nil, false, nil
	}
	return func() { l.unlocked = true }, true, nil
}

func recipients(n int) []domain.DigestRecipient {
	out := make([]domain.DigestRecipient, n)
	for i := range out {
		out[i] = domain.DigestRecipient{UserID: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@x.io", i)}
	}
	return out
}

func newTestOrchestrator(repo *stubRepo, sender *stubSender, locker domain.RunLocker, cfg OrchestratorConfig) (*Orchestrator, *[]time.Duration) {
	o := NewOrchestrator(repo, sender, locker, cfg, zerolog.Nop())
	var sleeps []time.Duration
	o.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return o, &sleeps
}

func TestProcessAllBatchesWithDelayBetween(t *testing.T) {
	repo := &stubRepo{recipients: recipients(25)}
	sender := &stubSender{}
	o, sleeps := newTestOrchestrator(repo, sender, nil, OrchestratorConfig{BatchSize: 10, BatchDelay: time.Second})

	res, err := o.ProcessAll(context.Background(), domain.FrequencyDaily)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Processed != 25 || res.Sent != 25 {
		t.Fatalf("ожидали 25 отправок, получили %+v", res)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("ожидали 2 паузы между 3 пачками, получили %d", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != time.Second {
			t.Fatalf("ожидали паузу 1s, получили %s", d)
		}
	}
}

func TestProcessAllClassifiesMixedBatch(t *testing.T) {
	repo := &stubRepo{recipients: recipients(3)}
	sender := &stubSender{results: map[string]domain.SendResult{
		"u0": {Success: true, VideoCount: 0},
		"u1": {Success: true, VideoCount: 4},
		"u2": {Success: false, Error: "boom"},
	}}
	o, sleeps := newTestOrchestrator(repo, sender, nil, OrchestratorConfig{})

	res, err := o.ProcessAll(context.Background(), domain.FrequencyDaily)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Processed != 3 || res.Skipped != 1 || res.Sent != 1 || res.Failed != 1 {
		t.Fatalf("неожиданный итог: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "u2@x.io: boom" {
		t.Fatalf("неожиданные ошибки: %v", res.Errors)
	}
	if res.Processed != res.Sent+res.Skipped+res.Failed {
		t.Fatalf("processed должен равняться сумме исходов")
	}
	if len(*sleeps) != 0 {
		t.Fatalf("после последней пачки паузы нет")
	}
}

func TestProcessAllEmpty(t *testing.T) {
	o, _ := newTestOrchestrator(&stubRepo{}, &stubSender{}, nil, OrchestratorConfig{})
	res, err := o.ProcessAll(context.Background(), domain.FrequencyWeekly)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Processed != 0 || len(res.Errors) != 0 {
		t.Fatalf("ожидали нулевой итог, получили %+v", res)
	}
}

func TestProcessAllEligibilityError(t *testing.T) {
	sender := &stubSender{}
	o, _ := newTestOrchestrator(&stubRepo{listErr: errors.New("rpc failed")}, sender, nil, OrchestratorConfig{})
	res, err := o.ProcessAll(context.Background(), domain.FrequencyDaily)
	if err == nil {
		t.Fatalf("ожидали ошибку выборки получателей")
	}
	if res.Processed != 0 || res.Sent != 0 || len(res.Errors) != 1 || res.Errors[0] != "rpc failed" {
		t.Fatalf("неожиданный итог: %+v", res)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("отправок быть не должно")
	}
}

func TestProcessAllRunLock(t *testing.T) {
	busy := &stubLocker{busy: true}
	o, _ := newTestOrchestrator(&stubRepo{recipients: recipients(2)}, &stubSender{}, busy, OrchestratorConfig{})
	if _, err := o.ProcessAll(context.Background(), domain.FrequencyDaily); !IsRunInProgress(err) {
		t.Fatalf("ожидали ErrRunInProgress, получили %v", err)
	}

	free := &stubLocker{}
	o, _ = newTestOrchestrator(&stubRepo{recipients: recipients(2)}, &stubSender{}, free, OrchestratorConfig{})
	if _, err := o.ProcessAll(context.Background(), domain.FrequencyDaily); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !free.unlocked {
		t.Fatalf("блокировка должна сниматься после прогона")
	}
}

func TestProcessAllBacksOffOnRateLimit(t *testing.T) {
	repo := &stubRepo{recipients: recipients(4)}
	sender := &stubSender{results: map[string]domain.SendResult{
		"u0": {Success: false, Error: "429", RateLimited: true, RetryAfter: 5 * time.Second},
		"u1": {Success: false, Error: "429", RateLimited: true},
	}}
	o, sleeps := newTestOrchestrator(repo, sender, nil, OrchestratorConfig{BatchSize: 1, BatchDelay: time.Second})

	res, err := o.ProcessAll(context.Background(), domain.FrequencyDaily)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Failed != 2 || res.Sent != 2 {
		t.Fatalf("ожидали 2 неуспеха без повторов, получили %+v", res)
	}
	want := []time.Duration{5 * time.Second, 2 * time.Second, time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("ожидали %d пауз, получили %v", len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("пауза %d: ожидали %s, получили %s", i, d, (*sleeps)[i])
		}
	}
}

func TestProcessAllRespectsConcurrency(t *testing.T) {
	repo := &stubRepo{recipients: recipients(10)}
	sender := &stubSender{hold: 5 * time.Millisecond}
	o, _ := newTestOrchestrator(repo, sender, nil, OrchestratorConfig{BatchSize: 10, Concurrency: 3})

	if _, err := o.ProcessAll(context.Background(), domain.FrequencyDaily); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if p := sender.peak.Load(); p > 3 {
		t.Fatalf("одновременно не больше 3 отправок, получили %d", p)
	}
	if len(sender.calls) != 10 {
		t.Fatalf("ожидали 10 отправок, получили %d", len(sender.calls))
	}
}

func TestProcessAllStopsOnCancel(t *testing.T) {
	repo := &stubRepo{recipients: recipients(3)}
	o := NewOrchestrator(repo, &stubSender{}, nil, OrchestratorConfig{BatchSize: 1, BatchDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.ProcessAll(ctx, domain.FrequencyDaily)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
	if res.Processed != 1 {
		t.Fatalf("ожидали частичный итог после первой пачки, получили %+v", res)
	}
}
