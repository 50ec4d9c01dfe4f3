package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"decompress/internal/domain"
	"decompress/internal/infra/metrics"
)

// Google потоковая модель Gemini.
type Google struct {
	client *genai.Client
	model  string
}

// NewGoogle создаёт клиента Gemini API.
func NewGoogle(ctx context.Context, apiKey, model string) (*Google, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("клиент genai: %w", err)
	}
	return &Google{client: client, model: model}, nil
}

func (m *Google) Provider() domain.Provider { return domain.ProviderGoogle }
func (m *Google) Model() string             { return m.model }

// Stream реализует domain.ChatModel.
func (m *Google) Stream(ctx context.Context, req domain.LLMRequest, onDelta func(string) error) (result domain.LLMResult, err error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == domain.ChatRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: int32(req.MaxTokens)}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("google", "generate_content_stream", m.model, start, err)
	}()
	for resp, streamErr := range m.client.Models.GenerateContentStream(ctx, m.model, contents, cfg) {
		if streamErr != nil {
			return domain.LLMResult{}, fmt.Errorf("генерация gemini: %w", streamErr)
		}
		if text := resp.Text(); text != "" {
			if err := onDelta(text); err != nil {
				return domain.LLMResult{}, err
			}
		}
		for _, c := range resp.Candidates {
			if c != nil && c.FinishReason != "" {
				result.FinishReason = normalizeFinishReason(string(c.FinishReason))
			}
		}
		if resp.UsageMetadata != nil {
			result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
	}
	metrics.ObserveLLMGeneration(m.model, time.Since(start), result.InputTokens, result.OutputTokens)
	return result, nil
}
