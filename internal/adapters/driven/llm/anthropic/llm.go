// Package anthropic provides an LLM service adapter using Anthropic API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-5"
	DefaultTimeout = 120 * time.Second

	// AnthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-sonnet-4-5).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService calls the Anthropic Messages API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	StopSeqs    []string          `json:"stop_sequences,omitempty"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic: API key is required", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// jsonSystemPrompt asks for schema-shaped output. The Messages API has no
// native JSON mode.
const jsonSystemPrompt = `Respond with a single JSON value that conforms to this JSON Schema.
Do not wrap it in Markdown or add commentary.

%s`

// defaultMaxTokens is sent when the caller sets no limit; the API requires one.
const defaultMaxTokens = 1024

// Generate produces text completion from a prompt. A JSONSchema is sent as
// a system instruction and the reply is prefilled with the opening bracket
// of the schema's root type.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.newRequest(opts.MaxTokens, opts.Temperature)
	req.Messages = []messagesMessage{{Role: "user", Content: prompt}}
	req.StopSeqs = opts.StopWords

	var prefill string
	if opts.JSONSchema != "" {
		req.System = fmt.Sprintf(jsonSystemPrompt, opts.JSONSchema)
		prefill = openingBracket(opts.JSONSchema)
		req.Messages = append(req.Messages, messagesMessage{Role: "assistant", Content: prefill})
	}

	out, err := s.send(ctx, req)
	if err != nil {
		return "", err
	}
	return prefill + out, nil
}

// Chat conducts a multi-turn conversation. System messages are joined into
// the request's system prompt.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := s.newRequest(opts.MaxTokens, opts.Temperature)

	var system []string
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		req.Messages = append(req.Messages, messagesMessage{Role: msg.Role, Content: msg.Content})
	}
	req.System = strings.Join(system, "\n\n")

	return s.send(ctx, req)
}

func (s *LLMService) newRequest(maxTokens int, temperature float64) messagesRequest {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	req := messagesRequest{Model: s.model, MaxTokens: maxTokens}
	if temperature > 0 {
		req.Temperature = temperature
	}
	return req
}

// openingBracket returns "[" for an array-rooted schema and "{" otherwise.
func openingBracket(schema string) string {
	var root struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(schema), &root); err == nil && root.Type == "array" {
		return "["
	}
	return "{"
}

func (s *LLMService) send(ctx context.Context, reqBody messagesRequest) (string, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorise(req)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: anthropic: send request: %v", domain.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: read response: %v", domain.ErrLLMUnavailable, err)
	}

	var msgResp messagesResponse
	decodeErr := json.Unmarshal(body, &msgResp)

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(body))
		if decodeErr == nil && msgResp.Error != nil {
			detail = msgResp.Error.Type + ": " + msgResp.Error.Message
		}
		return "", statusError(resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", decodeErr)
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	if result.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text content returned (stop reason %q)", msgResp.StopReason)
	}
	logger.Debug("Anthropic: %s used %d input, %d output tokens",
		s.model, msgResp.Usage.InputTokens, msgResp.Usage.OutputTokens)
	return result.String(), nil
}

// statusError wraps rate limits, overload and server errors in
// domain.ErrLLMUnavailable so callers retry them. Other statuses are request
// or credential problems and are returned as-is.
func statusError(status int, detail string) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: anthropic (status %d): %s", domain.ErrLLMUnavailable, status, detail)
	}
	return fmt.Errorf("anthropic (status %d): %s", status, detail)
}

func (s *LLMService) authorise(req *http.Request) {
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	s.authorise(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: anthropic: ping failed: %v", domain.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
