package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"decompress/internal/domain"
	httpinfra "decompress/internal/infra/http"
)

type createThreadRequest struct {
	Title    string   `json:"title"`
	VideoIDs []string `json:"videoIds"`
}

type renameThreadRequest struct {
	Title string `json:"title"`
}

type addMessageRequest struct {
	Role    domain.ChatRole `json:"role"`
	Content string          `json:"content"`
}

type setVideosRequest struct {
	VideoIDs []string `json:"videoIds"`
}

type threadDetailResponse struct {
	domain.ThreadDetail
	VideoIDs []string `json:"video_ids"`
}

func (h *Handler) mountThreads(r chi.Router) {
	r.Get("/", h.listThreads)
	r.Post("/", h.createThread)
	r.Get("/{id}", h.getThread)
	r.Patch("/{id}", h.renameThread)
	r.Delete("/{id}", h.deleteThread)
	r.Post("/{id}/messages", h.addMessage)
	r.Put("/{id}/videos", h.setThreadVideos)
}

func (h *Handler) listThreads(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	threads, err := h.deps.Threads.List(r.Context(), user.ID, r.URL.Query().Get("videoId"))
	if err != nil {
		h.writeServiceError(w, r, err, "Thread not found", "Failed to fetch threads")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, threads)
}

func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req createThreadRequest
	if r.ContentLength != 0 {
		if err := httpinfra.DecodeJSON(r, &req); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	thread, err := h.deps.Threads.Create(r.Context(), user.ID, req.Title, req.VideoIDs)
	if err != nil {
		h.writeServiceError(w, r, err, "Thread not found", "Failed to create thread")
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, thread)
}

func (h *Handler) getThread(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	detail, err := h.deps.Threads.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "Thread not found", "Failed to fetch thread")
		return
	}
	if detail.Messages == nil {
		detail.Messages = []domain.ThreadMessage{}
	}
	if detail.Videos == nil {
		detail.Videos = []domain.ThreadVideo{}
	}
	ids := make([]string, 0, len(detail.Videos))
	for _, v := range detail.Videos {
		ids = append(ids, v.ID)
	}
	httpinfra.WriteJSON(w, http.StatusOK, threadDetailResponse{ThreadDetail: detail, VideoIDs: ids})
}

func (h *Handler) renameThread(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req renameThreadRequest
	if err := httpinfra.DecodeJSON(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	thread, err := h.deps.Threads.Rename(r.Context(), user.ID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		h.writeServiceError(w, r, err, "Thread not found", "Failed to update thread")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, thread)
}

func (h *Handler) deleteThread(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if err := h.deps.Threads.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err, "Thread not found", "Failed to delete thread")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) addMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req addMessageRequest
	if err := httpinfra.DecodeJSON(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := h.deps.Threads.AddMessage(r.Context(), user.ID, chi.URLParam(r, "id"), req.Role, req.Content)
	if err != nil {
		h.writeServiceError(w, r, err, "Thread not found", "Failed to add message")
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, msg)
}

func (h *Handler) setThreadVideos(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req setVideosRequest
	if err := httpinfra.DecodeJSON(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.deps.Threads.SetVideos(r.Context(), user.ID, chi.URLParam(r, "id"), req.VideoIDs); err != nil {
		h.writeServiceError(w, r, err, "Thread not found", "Failed to update thread videos")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
