package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"decompress/internal/domain"
	httpinfra "decompress/internal/infra/http"
	"decompress/internal/usecase/chat"
	"decompress/internal/usecase/digest"
)

// DigestRunner запускает рассылку.
type DigestRunner interface {
	ProcessAll(ctx context.Context, freq domain.Frequency) (domain.RunResult, error)
}

// WeeklySource отдаёт последний еженедельный дайджест.
type WeeklySource interface {
	Latest(ctx context.Context) (*digest.WeeklyView, error)
}

// ChatRelay готовит и стримит ответы чата.
type ChatRelay interface {
	Prepare(ctx context.Context, user domain.AuthUser, req domain.ChatRequest) (*chat.Session, error)
	Usage(ctx context.Context, userID string) domain.QueryUsage
}

// ThreadService операции над тредами.
type ThreadService interface {
	List(ctx context.Context, userID, videoID string) ([]domain.Thread, error)
	Create(ctx context.Context, userID, title string, videoIDs []string) (domain.Thread, error)
	Get(ctx context.Context, userID, threadID string) (domain.ThreadDetail, error)
	Rename(ctx context.Context, userID, threadID, title string) (domain.Thread, error)
	Delete(ctx context.Context, userID, threadID string) error
	AddMessage(ctx context.Context, userID, threadID string, role domain.ChatRole, content string) (domain.ThreadMessage, error)
	SetVideos(ctx context.Context, userID, threadID string, videoIDs []string) error
}

// ChannelRequester принимает заявки на каналы.
type ChannelRequester interface {
	Request(ctx context.Context, user domain.AuthUser, input string) (domain.ChannelRequest, error)
}

// Deps зависимости обработчиков. Nil-сервис означает, что его маршруты не монтируются.
type Deps struct {
	Digest         DigestRunner
	Weekly         WeeklySource
	Chat           ChatRelay
	Threads        ThreadService
	Channels       ChannelRequester
	Auth           domain.Authenticator
	DigestSecrets  []string
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// Handler HTTP-обработчики API.
type Handler struct {
	deps Deps
	log  zerolog.Logger
}

// New создаёт обработчики.
func New(deps Deps) *Handler {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}
	return &Handler{deps: deps, log: deps.Logger}
}

// Mount регистрирует маршруты /api.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		if h.deps.Digest != nil {
			api.With(httpinfra.SecretAuthMiddleware(h.deps.DigestSecrets...)).
				Method(http.MethodGet, "/digest/send", http.HandlerFunc(h.sendDigest))
			api.With(httpinfra.SecretAuthMiddleware(h.deps.DigestSecrets...)).
				Method(http.MethodPost, "/digest/send", http.HandlerFunc(h.sendDigest))
		}
		if h.deps.Weekly != nil {
			api.With(middleware.Timeout(h.deps.RequestTimeout)).Get("/digest/weekly", h.weeklyDigest)
		}
		if h.deps.Auth == nil {
			return
		}
		api.Group(func(user chi.Router) {
			user.Use(httpinfra.UserAuthMiddleware(h.deps.Auth))
			if h.deps.Chat != nil {
				user.Post("/chat", h.chat)
				user.With(middleware.Timeout(h.deps.RequestTimeout)).Get("/chat/usage", h.chatUsage)
			}
			user.Group(func(rest chi.Router) {
				rest.Use(middleware.Timeout(h.deps.RequestTimeout))
				if h.deps.Threads != nil {
					rest.Route("/threads", h.mountThreads)
				}
				if h.deps.Channels != nil {
					rest.Post("/channels/request", h.requestChannel)
				}
			})
		})
	})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (domain.AuthUser, bool) {
	user, ok := httpinfra.UserFromContext(r.Context())
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return user, ok
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound, fallback string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		httpinfra.WriteError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, domain.ErrNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, notFound)
	default:
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("api: ошибка обработки запроса")
		httpinfra.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
