// Package langchain provides an LLM service adapter over langchaingo models.
// It serves OpenAI and OpenAI-compatible servers.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Config holds configuration for a langchaingo-backed service.
type Config struct {
	// Model is the model name.
	Model string

	// BaseURL overrides the provider endpoint. For OpenAI-compatible servers
	// this is the /v1 root.
	BaseURL string

	// APIKey is the OpenAI API key.
	APIKey string
}

// LLMService adapts an llms.Model to driven.LLMService.
type LLMService struct {
	model llms.Model
	name  string
}

// New wraps an existing model.
func New(model llms.Model, name string) *LLMService {
	return &LLMService{model: model, name: name}
}

// NewOpenAI creates a service for OpenAI or an OpenAI-compatible server.
func NewOpenAI(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to initialise: %w", err)
	}
	return New(model, cfg.Model), nil
}

// jsonInstruction is prepended as a system message when a schema is given.
const jsonInstruction = `Respond with a single JSON value that conforms to this JSON Schema.
Do not wrap it in Markdown or add commentary.

%s`

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	var content []llms.MessageContent
	callOpts := callOptions(opts.MaxTokens, opts.Temperature, opts.StopWords)
	if opts.JSONSchema != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(jsonInstruction, opts.JSONSchema)))
		callOpts = append(callOpts, llms.WithJSONMode())
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	return s.generate(ctx, content, callOpts)
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(messageType(msg.Role), msg.Content))
	}
	return s.generate(ctx, content, callOptions(opts.MaxTokens, opts.Temperature, nil))
}

func (s *LLMService) generate(ctx context.Context, content []llms.MessageContent, opts []llms.CallOption) (string, error) {
	resp, err := s.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrLLMUnavailable, s.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("%s: no response content returned", s.name)
	}
	return resp.Choices[0].Content, nil
}

func callOptions(maxTokens int, temperature float64, stop []string) []llms.CallOption {
	var opts []llms.CallOption
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	if temperature > 0 {
		opts = append(opts, llms.WithTemperature(temperature))
	}
	if len(stop) > 0 {
		opts = append(opts, llms.WithStopWords(stop))
	}
	return opts
}

func messageType(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.name
}

// Ping validates the model answers a one-token request.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.Generate(ctx, "ping", driven.GenerateOptions{MaxTokens: 1})
	return err
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
