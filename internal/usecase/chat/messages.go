package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"decompress/internal/domain"
)

const maxVideoIDs = 50

// NormalizeMessages превращает UI-сообщения в текст для модели.
// Непустой content важнее parts. Иначе склеиваются части типа text.
// Сообщения без текста отбрасываются.
func NormalizeMessages(in []domain.ChatMessage) []domain.LLMMessage {
	out := make([]domain.LLMMessage, 0, len(in))
	for _, msg := range in {
		text := msg.Content
		if text == "" {
			var b strings.Builder
			for _, part := range msg.Parts {
				if part.Type == "text" {
					b.WriteString(part.Text)
				}
			}
			text = b.String()
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, domain.LLMMessage{Role: msg.Role, Content: text})
	}
	return out
}

// Validate проверяет тело запроса.
func Validate(req domain.ChatRequest) error {
	if len(req.Messages) == 0 {
		return &domain.ValidationError{Message: "messages must not be empty"}
	}
	for i, msg := range req.Messages {
		if !msg.Role.Valid() {
			return &domain.ValidationError{Message: fmt.Sprintf("messages[%d].role must be user or assistant", i)}
		}
	}
	if req.Provider != "" {
		if _, err := domain.ParseProvider(string(req.Provider)); err != nil {
			return &domain.ValidationError{Message: "provider must be one of anthropic, openai, google"}
		}
	}
	if len(req.VideoIDs) > maxVideoIDs {
		return &domain.ValidationError{Message: fmt.Sprintf("at most %d videoIds allowed", maxVideoIDs)}
	}
	for i, id := range req.VideoIDs {
		if _, err := uuid.Parse(id); err != nil {
			return &domain.ValidationError{Message: fmt.Sprintf("videoIds[%d] must be a UUID", i)}
		}
	}
	return nil
}
