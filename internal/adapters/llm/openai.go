package llm

import (
	"context"
	"fmt"

	"decompress/internal/domain"
	"decompress/internal/infra/openai"
)

// OpenAI потоковая модель поверх Chat Completions.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI создаёт модель OpenAI.
func NewOpenAI(client *openai.Client, model string) *OpenAI {
	return &OpenAI{client: client, model: model}
}

func (m *OpenAI) Provider() domain.Provider { return domain.ProviderOpenAI }
func (m *OpenAI) Model() string             { return m.model }

// Stream реализует domain.ChatModel.
func (m *OpenAI) Stream(ctx context.Context, req domain.LLMRequest, onDelta func(string) error) (domain.LLMResult, error) {
	messages := make([]openai.ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatMessage{Role: openai.RoleSystem, Content: req.System})
	}
	for _, msg := range req.Messages {
		role := openai.RoleUser
		if msg.Role == domain.ChatRoleAssistant {
			role = openai.RoleAssistant
		}
		messages = append(messages, openai.ChatMessage{Role: role, Content: msg.Content})
	}
	res, err := m.client.StreamChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}, onDelta)
	if err != nil {
		return domain.LLMResult{}, fmt.Errorf("генерация openai: %w", err)
	}
	return domain.LLMResult{
		FinishReason: normalizeFinishReason(res.FinishReason),
		InputTokens:  res.Usage.PromptTokens,
		OutputTokens: res.Usage.CompletionTokens,
	}, nil
}
