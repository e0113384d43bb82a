// Package gateway sends prompt pairs to a language model and returns its raw
// text. It applies a per-call timeout and nothing else: retry policy belongs
// to the caller.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/pkg/llm"
)

const (
	// DefaultTimeout is the per-call wall-clock limit.
	DefaultTimeout = 20 * time.Second
	// DefaultTemperature keeps extraction output close to deterministic.
	DefaultTemperature = 0.1
	// DefaultMaxTokens caps a single response.
	DefaultMaxTokens = 1024
)

// ErrTimeout is returned when a call exceeds its timeout.
var ErrTimeout = errors.New("gateway: call timed out")

// Generator is the capability the extraction agent depends on.
type Generator interface {
	// Generate returns the model's raw response text, which may be malformed.
	// A non-positive timeout selects the implementation's default.
	Generate(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration) (string, error)
}

// LLM is a Generator backed by an llm.Provider.
type LLM struct {
	provider    llm.Provider
	limiter     *rate.Limiter
	observer    llm.LLMObserver
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

// Option configures an LLM gateway.
type Option func(*LLM)

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *LLM) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit limits calls to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *LLM) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver registers an observer notified after every backend call.
func WithObserver(obs llm.LLMObserver) Option {
	return func(g *LLM) {
		g.observer = obs
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *LLM) {
		g.temperature = t
	}
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int) Option {
	return func(g *LLM) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// NewLLM wraps a provider.
func NewLLM(provider llm.Provider, opts ...Option) *LLM {
	g := &LLM{
		provider:    provider,
		timeout:     DefaultTimeout,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider returns the wrapped provider.
func (g *LLM) Provider() llm.Provider {
	return g.provider
}

// Generate implements Generator.
func (g *LLM) Generate(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = g.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}

	start := time.Now()
	resp, err := g.provider.Execute(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	duration := time.Since(start)

	if g.observer != nil {
		g.observer.OnLLMCall(ctx, llm.LLMCallEvent{
			Provider:  g.provider.Name(),
			Model:     g.provider.Model(),
			Messages:  messages,
			Response:  resp,
			Error:     err,
			Duration:  duration,
			StartedAt: start,
		})
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
		}
		return "", err
	}

	logger.Debug("llm call complete",
		"provider", g.provider.Name(),
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", duration)

	return resp.Content, nil
}

var _ Generator = (*LLM)(nil)
