package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// DefaultProvider is used when no provider is named.
const DefaultProvider = "zhipu"

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"zhipu":      "glm-4-flash",
	"openai":     "gpt-4o-mini",
	"anthropic":  "claude-sonnet-4-20250514",
	"openrouter": "openrouter/auto",
	"ollama":     "llama3.2",
}

// DefaultBaseURLs maps provider names to their default endpoints.
var DefaultBaseURLs = map[string]string{
	"zhipu":      "https://open.bigmodel.cn/api/paas/v4",
	"openrouter": "https://openrouter.ai/api/v1",
	"ollama":     "http://localhost:11434",
}

// providerEnvKeys maps provider names to their API key environment variables,
// in lookup order.
var providerEnvKeys = map[string][]string{
	"zhipu":      {"SPECAGENT_LLM_API_KEY", "ZHIPUAI_API_KEY", "OPENAI_API_KEY"},
	"openai":     {"SPECAGENT_LLM_API_KEY", "OPENAI_API_KEY"},
	"anthropic":  {"SPECAGENT_LLM_API_KEY", "ANTHROPIC_API_KEY"},
	"openrouter": {"SPECAGENT_LLM_API_KEY", "OPENROUTER_API_KEY"},
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func init() {
	RegisterProvider("zhipu", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider("zhipu", cfg)
	})
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider("openai", cfg)
	})
	// OpenRouter speaks the OpenAI wire format.
	RegisterProvider("openrouter", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider("openrouter", cfg)
	})
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
	RegisterProvider("ollama", func(cfg ProviderConfig) (Provider, error) {
		return NewOllamaProvider(cfg)
	})
}

// NewProvider creates a provider by name. Empty model and base URL fields are
// filled from DefaultModels and DefaultBaseURLs.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	if name == "" {
		name = DefaultProvider
	}
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[name]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURLs[name]
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// IsRegistered returns true if a provider is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// APIKeyFromEnv returns the first non-empty API key environment variable for
// the provider, or "" if none is set.
func APIKeyFromEnv(provider string) string {
	for _, env := range providerEnvKeys[provider] {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return ""
}

// NeedsAPIKey reports whether the provider refuses to start without a key.
func NeedsAPIKey(provider string) bool {
	_, ok := providerEnvKeys[provider]
	return ok
}

// DetectProvider returns the first provider, in preference order, whose API
// key is present in the environment. It returns DefaultProvider when no key
// is set.
func DetectProvider() string {
	for _, name := range []string{"zhipu", "anthropic", "openrouter", "openai"} {
		for _, env := range providerEnvKeys[name] {
			if env == "SPECAGENT_LLM_API_KEY" {
				continue
			}
			if os.Getenv(env) != "" {
				return name
			}
		}
	}
	return DefaultProvider
}
