package domain

import (
	"context"
	"fmt"
	"strings"
)

// ChatRole роль автора сообщения.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Valid сообщает, допустима ли роль.
func (r ChatRole) Valid() bool {
	return r == ChatRoleUser || r == ChatRoleAssistant
}

// Provider LLM-провайдер.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// ParseProvider проверяет имя провайдера.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		return p, nil
	default:
		return "", fmt.Errorf("неизвестный провайдер %q", raw)
	}
}

// ChatMessagePart часть сообщения в формате UI.
type ChatMessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatMessage входящее сообщение чата.
type ChatMessage struct {
	Role    ChatRole          `json:"role"`
	Content string            `json:"content,omitempty"`
	Parts   []ChatMessagePart `json:"parts,omitempty"`
}

// ChatRequest тело запроса к чату.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	VideoIDs []string      `json:"videoIds,omitempty"`
	Provider Provider      `json:"provider,omitempty"`
}

// LLMMessage нормализованное сообщение для модели.
type LLMMessage struct {
	Role    ChatRole
	Content string
}

// LLMRequest запрос на потоковую генерацию.
type LLMRequest struct {
	System    string
	Messages  []LLMMessage
	MaxTokens int
}

// LLMResult итог генерации.
type LLMResult struct {
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// ChatModel потоковая модель конкретного провайдера.
type ChatModel interface {
	Provider() Provider
	Model() string
	// Stream вызывает onDelta для каждого фрагмента текста в порядке поступления.
	Stream(ctx context.Context, req LLMRequest, onDelta func(delta string) error) (LLMResult, error)
}

// StreamEventType тип события UI-потока.
type StreamEventType string

const (
	EventStart     StreamEventType = "start"
	EventTextStart StreamEventType = "text-start"
	EventTextDelta StreamEventType = "text-delta"
	EventTextEnd   StreamEventType = "text-end"
	EventFinish    StreamEventType = "finish"
)

// StreamEvent событие потока ответа.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	MessageID    string          `json:"messageId,omitempty"`
	ID           string          `json:"id,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	FinishReason string          `json:"finishReason,omitempty"`
}
