package tutor

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
	"github.com/sirupsen/logrus"

	"speakgenie/internal/config"
	"speakgenie/internal/domain/language"
)

// AnyLLM is a Completer backed by github.com/mozilla-ai/any-llm-go.
type AnyLLM struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
	maxTokens   int
}

// NewAnyLLM creates a Completer for cfg.Provider, one of gemini, openai,
// anthropic or ollama.
func NewAnyLLM(cfg config.TutorConfig) (*AnyLLM, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("tutor model must not be empty")
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}

	backend, err := createBackend(cfg.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("create %q backend: %w", cfg.Provider, err)
	}

	return &AnyLLM{
		backend:     backend,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "gemini", "":
		return gemini.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: gemini, openai, anthropic, ollama", providerName)
	}
}

func (a *AnyLLM) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	resp, err := a.backend.Completion(ctx, a.buildParams(system, messages))
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	if resp.Usage != nil {
		logrus.WithFields(logrus.Fields{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
		}).Debug("Tutor completion")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

func (a *AnyLLM) buildParams(system string, messages []Message) anyllmlib.CompletionParams {
	out := make([]anyllmlib.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: system})
	}
	for _, m := range messages {
		out = append(out, anyllmlib.Message{Role: string(m.Role), Content: m.Text})
	}

	params := anyllmlib.CompletionParams{
		Model:    a.model,
		Messages: out,
	}
	if a.temperature != 0 {
		t := a.temperature
		params.Temperature = &t
	}
	if a.maxTokens > 0 {
		mt := a.maxTokens
		params.MaxTokens = &mt
	}
	return params
}

// New builds the tutor from configuration. Hosted providers without an API
// key get a Genie that only returns NoCredentialsReply.
func New(cfg config.TutorConfig, policy *language.Policy) (*Genie, error) {
	if cfg.APIKey == "" && !strings.EqualFold(cfg.Provider, "ollama") {
		logrus.Warn("No tutor API key configured, chat replies are limited")
		return NewGenie(nil, policy, cfg.Timeout), nil
	}

	completer, err := NewAnyLLM(cfg)
	if err != nil {
		return nil, err
	}
	return NewGenie(completer, policy, cfg.Timeout), nil
}
