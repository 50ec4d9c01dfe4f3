package httpapi

import (
	"errors"
	"net/http"

	"decompress/internal/domain"
	httpinfra "decompress/internal/infra/http"
	"decompress/internal/usecase/chat"
)

type quotaExceededResponse struct {
	Error            string `json:"error"`
	QueriesUsed      int    `json:"queriesUsed"`
	QueriesRemaining int    `json:"queriesRemaining"`
}

// chat до первого байта отвечает обычным JSON, после него только событиями потока.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req domain.ChatRequest
	if err := httpinfra.DecodeJSON(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.deps.Chat.Prepare(r.Context(), user, req)
	if err != nil {
		var quota *chat.QuotaExceededError
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &quota):
			httpinfra.WriteJSON(w, http.StatusTooManyRequests, quotaExceededResponse{
				Error:            domain.ErrQuotaExceeded.Error(),
				QueriesUsed:      quota.Usage.QueriesUsed,
				QueriesRemaining: 0,
			})
		case errors.As(err, &ve):
			httpinfra.WriteError(w, http.StatusBadRequest, ve.Message)
		default:
			h.log.Error().Err(err).Str("user_id", user.ID).Msg("chat: подготовка запроса")
			httpinfra.WriteError(w, http.StatusInternalServerError, "Failed to process chat request")
		}
		return
	}

	stream := httpinfra.NewUIStreamWriter(w, sess.RemainingAfter())
	if err := sess.Run(r.Context(), stream); err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("chat: поток завершён с ошибкой")
	}
}

func (h *Handler) chatUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, h.deps.Chat.Usage(r.Context(), user.ID))
}
