package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// Resend отправляет письма через Resend. Одна попытка на письмо.
type Resend struct {
	client *resend.Client
	from   string
}

var _ domain.Mailer = (*Resend)(nil)

// Option настраивает клиента.
type Option func(*resend.Client)

// WithBaseURL переопределяет адрес API.
func WithBaseURL(raw string) Option {
	return func(c *resend.Client) {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		if u, err := url.Parse(raw); err == nil {
			c.BaseURL = u
		}
	}
}

// NewResend создаёт отправителя. Пустой apiKey даёт nil: доставка не настроена.
func NewResend(apiKey, fromName, fromEmail string, timeout time.Duration, opts ...Option) *Resend {
	if apiKey == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resend.NewCustomClient(&http.Client{Timeout: timeout}, apiKey)
	for _, opt := range opts {
		opt(client)
	}
	return &Resend{client: client, from: FromAddress(fromName, fromEmail)}
}

// FromAddress собирает адрес отправителя вида "Name <email>".
func FromAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// Send реализует domain.Mailer.
func (r *Resend) Send(ctx context.Context, to, subject, html string) (string, error) {
	start := time.Now()
	resp, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	metrics.ObserveNetworkRequest("resend", "emails_send", "emails", start, err)
	if err != nil {
		return "", translateError(err)
	}
	return resp.Id, nil
}

func translateError(err error) error {
	var rl *resend.RateLimitError
	if errors.As(err, &rl) {
		metrics.DigestRateLimitedTotal.Inc()
		return &domain.RateLimitError{
			Message:    rl.Error(),
			RetryAfter: parseRetryAfter(rl.RetryAfter),
		}
	}
	return err
}

func parseRetryAfter(raw string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
