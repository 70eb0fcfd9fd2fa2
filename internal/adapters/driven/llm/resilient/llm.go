// Package resilient wraps an LLM service with a request rate limit and
// retries with exponential backoff.
package resilient

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultBackoffs are the waits before each retry.
var DefaultBackoffs = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Config holds the decorator configuration.
type Config struct {
	// RequestsPerMinute caps call rate. Zero means unlimited.
	RequestsPerMinute int

	// Backoffs are the waits before each retry; its length is the retry
	// count. Nil means DefaultBackoffs, empty means no retries.
	Backoffs []time.Duration
}

// LLMService retries calls that fail with domain.ErrLLMUnavailable.
type LLMService struct {
	next     driven.LLMService
	limiter  *rate.Limiter
	backoffs []time.Duration
}

// New wraps next.
func New(next driven.LLMService, cfg Config) *LLMService {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	backoffs := cfg.Backoffs
	if backoffs == nil {
		backoffs = DefaultBackoffs
	}
	return &LLMService{next: next, limiter: limiter, backoffs: backoffs}
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.do(ctx, func() (string, error) {
		return s.next.Generate(ctx, prompt, opts)
	})
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.do(ctx, func() (string, error) {
		return s.next.Chat(ctx, messages, opts)
	})
}

func (s *LLMService) do(ctx context.Context, call func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= len(s.backoffs); attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		out, err := call()
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, domain.ErrLLMUnavailable) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err

		if attempt < len(s.backoffs) {
			logger.Debug("LLM: %s unavailable, retrying in %s: %v", s.next.ModelName(), s.backoffs[attempt], err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.backoffs[attempt]):
			}
		}
	}
	return "", lastErr
}

// ModelName returns the wrapped model's name.
func (s *LLMService) ModelName() string {
	return s.next.ModelName()
}

// Ping checks the wrapped service once, without retries.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the wrapped service.
func (s *LLMService) Close() error {
	return s.next.Close()
}
