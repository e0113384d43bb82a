package gateway

import (
	"time"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/pkg/llm"
)

// Endpoint is an optional per-run backend override. Empty fields fall back
// to the provider defaults.
type Endpoint struct {
	BaseURL   string `json:"llm_base_url,omitempty"`
	ModelName string `json:"llm_model_name,omitempty"`
	APIKey    string `json:"llm_api_key,omitempty"`
}

// Options configures New.
type Options struct {
	// Provider names a registered llm provider. Empty selects llm.DefaultProvider.
	Provider string
	Timeout  time.Duration
	// RateLimit is in calls per second. Zero disables limiting.
	RateLimit float64
	Burst     int
	Observer  llm.LLMObserver
	// Fallback replaces DefaultFallback in degraded mode.
	Fallback *Fallback
}

// New builds a Generator for the endpoint. When no backend can be constructed
// (no API key, unknown provider) it returns the Fallback gateway instead of an
// error so a run can always proceed.
func New(ep Endpoint, opts Options) Generator {
	name := opts.Provider
	if name == "" {
		name = llm.DefaultProvider
	}

	fallback := opts.Fallback
	if fallback == nil {
		fallback = DefaultFallback()
	}

	apiKey := ep.APIKey
	if apiKey == "" {
		apiKey = llm.APIKeyFromEnv(name)
	}
	if apiKey == "" && llm.NeedsAPIKey(name) {
		logger.Warn("no LLM API key configured, using degraded-mode fallback", "provider", name)
		return fallback
	}

	cfg := llm.DefaultProviderConfig()
	cfg.APIKey = apiKey
	cfg.BaseURL = ep.BaseURL
	cfg.Model = ep.ModelName

	provider, err := llm.NewProvider(name, cfg)
	if err != nil {
		logger.Warn("LLM backend unavailable, using degraded-mode fallback", "provider", name, "error", err)
		return fallback
	}

	logger.Info("LLM client initialized", "provider", provider.Name(), "model", provider.Model(), "base_url", cfg.BaseURL)

	return NewLLM(provider,
		WithTimeout(opts.Timeout),
		WithRateLimit(opts.RateLimit, opts.Burst),
		WithObserver(opts.Observer),
	)
}
