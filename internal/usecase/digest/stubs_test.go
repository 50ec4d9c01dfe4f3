package digest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"decompress/internal/domain"
)

type stubRepo struct {
	mu         sync.Mutex
	recipients []domain.DigestRecipient
	listErr    error
	videos     map[string][]domain.DigestVideoRow
	videoErr   map[string]error
	hoursBack  []int
	outcomes   []domain.DigestSendOutcome
	marked     []string
	outcomeErr []error
	markErr    []error
}

func (s *stubRepo) ListDigestRecipients(context.Context, domain.Frequency) ([]domain.DigestRecipient, error) {
	return s.recipients, s.listErr
}

func (s *stubRepo) ListDigestVideos(_ context.Context, userID string, hoursBack int) ([]domain.DigestVideoRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hoursBack = append(s.hoursBack, hoursBack)
	if err := s.videoErr[userID]; err != nil {
		return nil, err
	}
	return s.videos[userID], nil
}

func (s *stubRepo) SaveSendOutcome(ctx context.Context, o domain.DigestSendOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomeErr = append(s.outcomeErr, ctx.Err())
	if err := ctx.Err(); err != nil {
		return err
	}
	s.outcomes = append(s.outcomes, o)
	return nil
}

// MarkDigestSent ведёт себя как pgx: на отменённом контексте запрос не выполняется.
func (s *stubRepo) MarkDigestSent(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markErr = append(s.markErr, ctx.Err())
	if err := ctx.Err(); err != nil {
		return err
	}
	s.marked = append(s.marked, userID)
	return nil
}

type sentMail struct {
	to, subject, html string
}

type stubMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	errFn func(to string) error
	// onSend вызывается после того, как провайдер принял письмо.
	onSend func()
}

func (m *stubMailer) Send(_ context.Context, to, subject, html string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errFn != nil {
		if err := m.errFn(to); err != nil {
			return "", err
		}
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	if m.onSend != nil {
		m.onSend()
	}
	return "msg-" + to, nil
}

func intPtr(v int) *int { return &v }

func sampleRows() []domain.DigestVideoRow {
	published := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	return []domain.DigestVideoRow{
		{VideoID: "v1", Title: "Rust in 100 seconds", ChannelID: "c1", ChannelName: "Fireship", DurationSeconds: intPtr(3900), PublishedAt: published, Summary: "A **fast** intro."},
		{VideoID: "v2", Title: "Go generics", ChannelID: "c2", ChannelName: "Gopher TV", DurationSeconds: intPtr(720), PublishedAt: published},
		{VideoID: "v3", Title: "Bun 2.0", ChannelID: "c1", ChannelName: "Fireship", PublishedAt: published, Summary: "New runtime."},
	}
}

func mustContain(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("ожидали найти подстроку %q в %q", substr, s)
	}
}

func mustNotContain(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Fatalf("не ожидали подстроку %q", substr)
	}
}
