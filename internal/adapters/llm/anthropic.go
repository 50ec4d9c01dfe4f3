package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// Anthropic потоковая модель Claude через langchaingo.
type Anthropic struct {
	llm   llms.Model
	model string
}

// NewAnthropic создаёт клиента Anthropic.
func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	client, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("клиент anthropic: %w", err)
	}
	return &Anthropic{llm: client, model: model}, nil
}

func (m *Anthropic) Provider() domain.Provider { return domain.ProviderAnthropic }
func (m *Anthropic) Model() string             { return m.model }

// Stream реализует domain.ChatModel.
func (m *Anthropic) Stream(ctx context.Context, req domain.LLMRequest, onDelta func(string) error) (domain.LLMResult, error) {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, msg := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if msg.Role == domain.ChatRoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(req.MaxTokens),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(string(chunk))
		}),
	)
	metrics.ObserveNetworkRequest("anthropic", "messages_stream", m.model, start, err)
	if err != nil {
		return domain.LLMResult{}, fmt.Errorf("генерация anthropic: %w", err)
	}
	var result domain.LLMResult
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.FinishReason = normalizeFinishReason(choice.StopReason)
		result.InputTokens = intFromInfo(choice.GenerationInfo, "InputTokens")
		result.OutputTokens = intFromInfo(choice.GenerationInfo, "OutputTokens")
	}
	metrics.ObserveLLMGeneration(m.model, time.Since(start), result.InputTokens, result.OutputTokens)
	return result, nil
}
