package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decompress/internal/domain"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecretAuthMiddleware(t *testing.T) {
	cases := []struct {
		name    string
		secrets []string
		header  string
		want    int
	}{
		{"не настроен", nil, "Bearer x", http.StatusInternalServerError},
		{"нет заголовка", []string{"k"}, "", http.StatusUnauthorized},
		{"неверный ключ", []string{"k"}, "Bearer nope", http.StatusUnauthorized},
		{"api key", []string{"k", "cron"}, "Bearer k", http.StatusOK},
		{"cron secret", []string{"", "cron"}, "bearer cron", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/digest/send", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			SecretAuthMiddleware(tc.secrets...)(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSecretAuthMiddlewareCronHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/digest/send", nil)
	req.Header.Set(CronSecretHeader, "cron")
	rec := httptest.NewRecorder()
	SecretAuthMiddleware("k", "cron")(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.Header.Set(CronSecretHeader, "k2")
	rec = httptest.NewRecorder()
	SecretAuthMiddleware("k", "cron")(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubAuth struct {
	user domain.AuthUser
	err  error
}

func (s stubAuth) Authenticate(context.Context, string) (domain.AuthUser, error) {
	return s.user, s.err
}

func TestUserAuthMiddleware(t *testing.T) {
	var seen domain.AuthUser
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		seen = u
	})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/usage", nil)
	rec := httptest.NewRecorder()
	UserAuthMiddleware(stubAuth{})(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer t")
	rec = httptest.NewRecorder()
	UserAuthMiddleware(stubAuth{err: domain.ErrUnauthorized})(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	UserAuthMiddleware(stubAuth{user: domain.AuthUser{ID: "u1"}})(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", seen.ID)
}

func TestUIStreamWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewUIStreamWriter(rec, 41)
	require.NoError(t, sw.WriteEvent(domain.StreamEvent{Type: domain.EventTextDelta, ID: "p", Delta: "hi"}))
	require.NoError(t, sw.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "v1", rec.Header().Get("x-vercel-ai-ui-message-stream"))
	assert.Equal(t, "41", rec.Header().Get("X-Queries-Remaining"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `data: {"type":"text-delta","id":"p","delta":"hi"}`+"\n\n"))
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}
