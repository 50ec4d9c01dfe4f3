package supabase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// Auth проверяет JWT через эндпоинт /auth/v1/user.
type Auth struct {
	http    *http.Client
	baseURL string
	anonKey string
}

var _ domain.Authenticator = (*Auth)(nil)

// NewAuth создаёт клиента проверки токенов.
func NewAuth(baseURL, anonKey string, timeout time.Duration) *Auth {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Auth{http: &http.Client{Timeout: timeout}, baseURL: strings.TrimRight(baseURL, "/"), anonKey: anonKey}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Authenticate реализует domain.Authenticator.
func (a *Auth) Authenticate(ctx context.Context, token string) (domain.AuthUser, error) {
	if token == "" {
		return domain.AuthUser{}, domain.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("сборка запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if a.anonKey != "" {
		req.Header.Set("apikey", a.anonKey)
	}

	start := time.Now()
	resp, err := a.http.Do(req)
	metrics.ObserveNetworkRequest("supabase", "auth_get_user", "auth", start, err)
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("запрос пользователя: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.AuthUser{}, domain.ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.AuthUser{}, fmt.Errorf("auth: неожиданный статус %d", resp.StatusCode)
	}
	var u userResponse
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return domain.AuthUser{}, fmt.Errorf("разбор пользователя: %w", err)
	}
	if u.ID == "" {
		return domain.AuthUser{}, domain.ErrUnauthorized
	}
	return domain.AuthUser{ID: u.ID, Email: u.Email}, nil
}

// ByteCache минимальный кэш байтов.
type ByteCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedAuth кэширует успешные проверки токенов.
type CachedAuth struct {
	next  domain.Authenticator
	cache ByteCache
	ttl   time.Duration
	log   zerolog.Logger
}

var _ domain.Authenticator = (*CachedAuth)(nil)

// NewCachedAuth оборачивает next кэшем. Ключ строится из sha256 токена.
func NewCachedAuth(next domain.Authenticator, cache ByteCache, ttl time.Duration, logger zerolog.Logger) *CachedAuth {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedAuth{next: next, cache: cache, ttl: ttl, log: logger}
}

// Authenticate реализует domain.Authenticator.
func (c *CachedAuth) Authenticate(ctx context.Context, token string) (domain.AuthUser, error) {
	sum := sha256.Sum256([]byte(token))
	key := "auth:user:" + hex.EncodeToString(sum[:])
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var u domain.AuthUser
		if jerr := json.Unmarshal(raw, &u); jerr == nil && u.ID != "" {
			return u, nil
		}
	}
	u, err := c.next.Authenticate(ctx, token)
	if err != nil {
		return domain.AuthUser{}, err
	}
	raw, _ := json.Marshal(u)
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn().Err(err).Msg("auth: не удалось закэшировать пользователя")
	}
	return u, nil
}
