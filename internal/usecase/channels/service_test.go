package channels

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

type stubRepo struct {
	input string
	err   error
}

func (s *stubRepo) CreateChannelRequest(_ context.Context, userID, input string) (domain.ChannelRequest, error) {
	if s.err != nil {
		return domain.ChannelRequest{}, s.err
	}
	s.input = input
	return domain.ChannelRequest{ID: "r1", UserID: userID, ChannelInput: input, Status: "pending", CreatedAt: time.Unix(0, 0)}, nil
}

type stubMailer struct {
	to, subject, html string
	err               error
}

func (m *stubMailer) Send(_ context.Context, to, subject, html string) (string, error) {
	m.to, m.subject, m.html = to, subject, html
	return "id", m.err
}

type stubPublisher struct {
	key     string
	payload any
	err     error
}

func (p *stubPublisher) Publish(_ context.Context, key string, payload any) error {
	p.key, p.payload = key, payload
	return p.err
}

func TestNormalizeInput(t *testing.T) {
	cases := map[string]bool{
		"":                       false,
		"   ":                    false,
		"@veritasium":            true,
		strings.Repeat("a", 500): true,
		strings.Repeat("ы", 501): false,
	}
	for input, ok := range cases {
		_, err := NormalizeInput(input)
		if ok && err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", input, err)
		}
		if !ok && err == nil {
			t.Fatalf("ожидали ошибку для %q", input)
		}
	}
}

func TestRequestNotifiesAdminAndPublishes(t *testing.T) {
	repo := &stubRepo{}
	mailer := &stubMailer{}
	pub := &stubPublisher{}
	svc := NewService(repo, mailer, pub, Config{AdminEmail: "admin@example.com"}, zerolog.Nop())

	req, err := svc.Request(context.Background(), domain.AuthUser{ID: "u1", Email: "a<b>@x.io"}, "  youtube.com/@veritasium ")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if req.ID != "r1" || repo.input != "youtube.com/@veritasium" {
		t.Fatalf("неожиданная заявка: %+v", req)
	}
	if mailer.to != "admin@example.com" || !strings.Contains(mailer.subject, "youtube.com/@veritasium") {
		t.Fatalf("неожиданное письмо: %q %q", mailer.to, mailer.subject)
	}
	if !strings.Contains(mailer.html, "a&lt;b&gt;@x.io") {
		t.Fatalf("email пользователя должен экранироваться: %s", mailer.html)
	}
	ev, ok := pub.payload.(RequestedEvent)
	if pub.key != "channel.requested" || !ok || ev.RequestID != "r1" {
		t.Fatalf("неожиданное событие: %s %+v", pub.key, pub.payload)
	}
}

func TestRequestIgnoresNotificationFailures(t *testing.T) {
	svc := NewService(&stubRepo{}, &stubMailer{err: errors.New("smtp down")}, &stubPublisher{err: errors.New("broker down")},
		Config{AdminEmail: "admin@example.com"}, zerolog.Nop())
	if _, err := svc.Request(context.Background(), domain.AuthUser{ID: "u1"}, "chan"); err != nil {
		t.Fatalf("уведомления не должны ломать заявку: %v", err)
	}
}

func TestRequestWithoutNotifiers(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, Config{}, zerolog.Nop())
	if _, err := svc.Request(context.Background(), domain.AuthUser{ID: "u1"}, "chan"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
}

func TestRequestRepoError(t *testing.T) {
	svc := NewService(&stubRepo{err: errors.New("db")}, nil, nil, Config{}, zerolog.Nop())
	if _, err := svc.Request(context.Background(), domain.AuthUser{ID: "u1"}, "chan"); err == nil {
		t.Fatalf("ожидали ошибку хранилища")
	}
	var ve *domain.ValidationError
	if _, err := svc.Request(context.Background(), domain.AuthUser{ID: "u1"}, ""); !errors.As(err, &ve) {
		t.Fatalf("ожидали ValidationError, получили %v", err)
	}
}
