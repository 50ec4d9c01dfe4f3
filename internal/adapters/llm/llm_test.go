package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"decompress/internal/domain"
)

type fakeLangchain struct {
	chunks   []string
	messages []llms.MessageContent
	opts     llms.CallOptions
	err      error
}

func (f *fakeLangchain) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	var full strings.Builder
	for _, c := range f.chunks {
		if err := f.opts.StreamingFunc(ctx, []byte(c)); err != nil {
			return nil, err
		}
		full.WriteString(c)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        full.String(),
		StopReason:     "end_turn",
		GenerationInfo: map[string]any{"InputTokens": 120, "OutputTokens": 7},
	}}}, nil
}

func (f *fakeLangchain) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func TestAnthropicStream(t *testing.T) {
	fake := &fakeLangchain{chunks: []string{"Hel", "lo"}}
	m := &Anthropic{llm: fake, model: "claude-sonnet-4-20250514"}

	var deltas []string
	res, err := m.Stream(context.Background(), domain.LLMRequest{
		System:    "sys",
		Messages:  []domain.LLMMessage{{Role: domain.ChatRoleUser, Content: "q"}, {Role: domain.ChatRoleAssistant, Content: "a"}},
		MaxTokens: 1024,
	}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if strings.Join(deltas, "|") != "Hel|lo" {
		t.Fatalf("неожиданные дельты: %v", deltas)
	}
	if res.FinishReason != "stop" || res.InputTokens != 120 || res.OutputTokens != 7 {
		t.Fatalf("неожиданный итог: %+v", res)
	}
	if fake.opts.MaxTokens != 1024 {
		t.Fatalf("ожидали max tokens 1024, получили %d", fake.opts.MaxTokens)
	}
	if len(fake.messages) != 3 || fake.messages[0].Role != llms.ChatMessageTypeSystem || fake.messages[2].Role != llms.ChatMessageTypeAI {
		t.Fatalf("неожиданные сообщения: %+v", fake.messages)
	}
}

func TestAnthropicStreamError(t *testing.T) {
	m := &Anthropic{llm: &fakeLangchain{err: errors.New("overloaded")}, model: "m"}
	if _, err := m.Stream(context.Background(), domain.LLMRequest{}, func(string) error { return nil }); err == nil {
		t.Fatalf("ожидали ошибку провайдера")
	}
}

type namedModel struct {
	p domain.Provider
}

func (n namedModel) Provider() domain.Provider { return n.p }
func (n namedModel) Model() string             { return string(n.p) + "-model" }
func (n namedModel) Stream(context.Context, domain.LLMRequest, func(string) error) (domain.LLMResult, error) {
	return domain.LLMResult{}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewStaticRegistry(domain.ProviderAnthropic, namedModel{domain.ProviderAnthropic}, namedModel{domain.ProviderOpenAI})

	m, err := r.Resolve("")
	if err != nil || m.Provider() != domain.ProviderAnthropic {
		t.Fatalf("ожидали провайдера по умолчанию, получили %v, %v", m, err)
	}
	m, err = r.Resolve(domain.ProviderOpenAI)
	if err != nil || m.Provider() != domain.ProviderOpenAI {
		t.Fatalf("ожидали openai")
	}
	if _, err := r.Resolve(domain.ProviderGoogle); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("ожидали ErrProviderNotConfigured, получили %v", err)
	}
}

func TestModelFor(t *testing.T) {
	if got := modelFor(domain.ProviderOpenAI, domain.ProviderAnthropic, "custom"); got != "gpt-4o" {
		t.Fatalf("override должен касаться только провайдера по умолчанию, получили %s", got)
	}
	if got := modelFor(domain.ProviderAnthropic, domain.ProviderAnthropic, "custom"); got != "custom" {
		t.Fatalf("ожидали custom, получили %s", got)
	}
	if got := modelFor(domain.ProviderGoogle, domain.ProviderGoogle, ""); got != "gemini-1.5-pro" {
		t.Fatalf("ожидали модель по умолчанию, получили %s", got)
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	cases := map[string]string{"end_turn": "stop", "MAX_TOKENS": "length", "SAFETY": "content-filter", "weird": "other", "": "stop"}
	for in, want := range cases {
		if got := normalizeFinishReason(in); got != want {
			t.Fatalf("%q: ожидали %s, получили %s", in, want, got)
		}
	}
}
