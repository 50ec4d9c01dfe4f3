package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"decompress/internal/domain"
	"decompress/internal/infra/openai"
)

// DefaultModels модели по умолчанию для провайдеров.
var DefaultModels = map[domain.Provider]string{
	domain.ProviderAnthropic: "claude-sonnet-4-20250514",
	domain.ProviderOpenAI:    "gpt-4o",
	domain.ProviderGoogle:    "gemini-1.5-pro",
}

// ErrProviderNotConfigured у провайдера нет ключа.
var ErrProviderNotConfigured = errors.New("провайдер не настроен")

// Config ключи и выбор модели.
type Config struct {
	DefaultProvider string
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GoogleAPIKey    string
	Timeout         time.Duration
}

// Registry выбирает модель по провайдеру.
type Registry struct {
	def    domain.Provider
	models map[domain.Provider]domain.ChatModel
}

// NewRegistry собирает модели для провайдеров, у которых есть ключ.
// AI_MODEL применяется только к провайдеру по умолчанию.
func NewRegistry(ctx context.Context, cfg Config) (*Registry, error) {
	def, err := domain.ParseProvider(cfg.DefaultProvider)
	if err != nil {
		return nil, err
	}
	r := NewStaticRegistry(def)
	if cfg.AnthropicAPIKey != "" {
		m, err := NewAnthropic(cfg.AnthropicAPIKey, modelFor(domain.ProviderAnthropic, def, cfg.Model))
		if err != nil {
			return nil, err
		}
		r.Register(m)
	}
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Timeout)
		r.Register(NewOpenAI(client, modelFor(domain.ProviderOpenAI, def, cfg.Model)))
	}
	if cfg.GoogleAPIKey != "" {
		m, err := NewGoogle(ctx, cfg.GoogleAPIKey, modelFor(domain.ProviderGoogle, def, cfg.Model))
		if err != nil {
			return nil, err
		}
		r.Register(m)
	}
	return r, nil
}

// NewStaticRegistry создаёт пустой реестр.
func NewStaticRegistry(def domain.Provider, models ...domain.ChatModel) *Registry {
	r := &Registry{def: def, models: make(map[domain.Provider]domain.ChatModel)}
	for _, m := range models {
		r.Register(m)
	}
	return r
}

// Register добавляет модель.
func (r *Registry) Register(m domain.ChatModel) {
	r.models[m.Provider()] = m
}

// Resolve возвращает модель провайдера, пустой провайдер означает провайдера по умолчанию.
func (r *Registry) Resolve(p domain.Provider) (domain.ChatModel, error) {
	if p == "" {
		p = r.def
	}
	m, ok := r.models[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrProviderNotConfigured)
	}
	return m, nil
}

func modelFor(p, def domain.Provider, override string) string {
	if p == def && override != "" {
		return override
	}
	return DefaultModels[p]
}

// normalizeFinishReason приводит причину остановки к словарю UI-потока.
func normalizeFinishReason(raw string) string {
	switch strings.ToLower(raw) {
	case "", "stop", "end_turn", "stop_sequence":
		return "stop"
	case "length", "max_tokens":
		return "length"
	case "content_filter", "safety", "recitation", "blocklist", "prohibited_content", "spii":
		return "content-filter"
	case "tool_use", "tool_calls":
		return "tool-calls"
	default:
		return "other"
	}
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
