package httpapi

import (
	"net/http"

	"decompress/internal/domain"
	httpinfra "decompress/internal/infra/http"
)

type channelRequestBody struct {
	ChannelInput string `json:"channelInput"`
}

type channelRequestResponse struct {
	Success bool                  `json:"success"`
	Request domain.ChannelRequest `json:"request"`
}

func (h *Handler) requestChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var body channelRequestBody
	if err := httpinfra.DecodeJSON(r, &body); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.deps.Channels.Request(r.Context(), user, body.ChannelInput)
	if err != nil {
		h.writeServiceError(w, r, err, "Not found", "Failed to create request")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, channelRequestResponse{Success: true, Request: req})
}
