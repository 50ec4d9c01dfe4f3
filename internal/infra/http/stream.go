package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"decompress/internal/domain"
)

// UIStreamWriter пишет события UI-потока в формате SSE.
type UIStreamWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewUIStreamWriter отправляет заголовки потока и снимает write deadline сервера.
func NewUIStreamWriter(w http.ResponseWriter, queriesRemaining int) *UIStreamWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("x-vercel-ai-ui-message-stream", "v1")
	h.Set("X-Queries-Remaining", strconv.Itoa(queriesRemaining))
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.WriteHeader(http.StatusOK)
	return &UIStreamWriter{w: w, rc: rc}
}

// WriteEvent отправляет одно событие и сбрасывает буфер.
func (s *UIStreamWriter) WriteEvent(ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("кодирование события: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.flush()
}

// Close завершает поток маркером [DONE].
func (s *UIStreamWriter) Close() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	return s.flush()
}

func (s *UIStreamWriter) flush() error {
	if err := s.rc.Flush(); err != nil && err != http.ErrNotSupported {
		return err
	}
	return nil
}
