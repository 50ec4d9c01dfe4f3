package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"decompress/internal/domain"
	httpinfra "decompress/internal/infra/http"
)

type sendDigestResponse struct {
	Success bool             `json:"success"`
	Stats   domain.RunResult `json:"stats"`
	Error   string           `json:"error,omitempty"`
}

// sendDigest запускает прогон синхронно и отвечает итогом.
func (h *Handler) sendDigest(w http.ResponseWriter, r *http.Request) {
	freq, err := domain.ParseFrequency(r.URL.Query().Get("frequency"))
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "frequency must be daily or weekly")
		return
	}
	// Прогон длиннее WriteTimeout сервера.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	logger := h.log.With().Str("frequency", string(freq)).Str("request_id", httpinfra.RequestID(r)).Logger()
	logger.Info().Msg("digest: старт прогона")
	// Обрыв соединения вызывающего cron не прерывает начатый прогон.
	stats, err := h.deps.Digest.ProcessAll(context.WithoutCancel(r.Context()), freq)
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		httpinfra.WriteJSON(w, http.StatusConflict, sendDigestResponse{Stats: stats, Error: "Digest run already in progress"})
	case err != nil:
		logger.Error().Err(err).Msg("digest: прогон прерван")
		httpinfra.WriteJSON(w, http.StatusInternalServerError, sendDigestResponse{Stats: stats, Error: "Failed to process digests"})
	default:
		httpinfra.WriteJSON(w, http.StatusOK, sendDigestResponse{Success: true, Stats: stats})
	}
}

func (h *Handler) weeklyDigest(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Weekly.Latest(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Digest not found", "Failed to fetch digest")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"digest": view})
}
