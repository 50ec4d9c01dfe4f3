package http

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"decompress/internal/domain"
)

type userCtxKey struct{}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// CronSecretHeader заголовок, которым планировщик хостинга передаёт секрет.
const CronSecretHeader = "X-Vercel-Cron-Secret"

// SecretAuthMiddleware пропускает запрос, если bearer или CronSecretHeader
// совпадает с одним из секретов. Без настроенных секретов отвечает 500.
func SecretAuthMiddleware(secrets ...string) func(http.Handler) http.Handler {
	var hashes [][32]byte
	for _, s := range secrets {
		if s != "" {
			hashes = append(hashes, sha256.Sum256([]byte(s)))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hashes) == 0 {
				WriteError(w, http.StatusInternalServerError, "Digest API key not configured")
				return
			}
			matched := 0
			for _, candidate := range []string{BearerToken(r), r.Header.Get(CronSecretHeader)} {
				if candidate == "" {
					continue
				}
				got := sha256.Sum256([]byte(candidate))
				for _, h := range hashes {
					matched |= subtle.ConstantTimeCompare(got[:], h[:])
				}
			}
			if matched != 1 {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserAuthMiddleware проверяет токен пользователя и кладёт его в контекст.
func UserAuthMiddleware(auth domain.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}
			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					WriteError(w, http.StatusUnauthorized, "Invalid token")
					return
				}
				WriteError(w, http.StatusUnauthorized, "Authentication failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, user domain.AuthUser) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext достаёт пользователя, положенного UserAuthMiddleware.
func UserFromContext(ctx context.Context) (domain.AuthUser, bool) {
	user, ok := ctx.Value(userCtxKey{}).(domain.AuthUser)
	return user, ok
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
