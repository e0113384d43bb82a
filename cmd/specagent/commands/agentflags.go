package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/pkg/agent"
	"github.com/jmylchreest/specagent/pkg/gateway"
	"github.com/jmylchreest/specagent/pkg/llm"
	"github.com/jmylchreest/specagent/pkg/plan"
	"github.com/jmylchreest/specagent/pkg/prompt"
	"github.com/jmylchreest/specagent/pkg/schema"
	"github.com/jmylchreest/specagent/pkg/segment"
)

// addAgentFlags registers the flags shared by every command that runs the agent.
func addAgentFlags(flags *pflag.FlagSet) {
	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: "+strings.Join(llm.AvailableProviders(), ", ")+" (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.Float64("rate-limit", 0, "max LLM calls per second (0=unlimited)")

	// Run settings
	flags.String("goals", "", "goals file (YAML or JSON); default is the built-in fire-safety set")
	flags.String("schema", "", "record schema file (YAML or JSON); default is the constraint schema")
	flags.Bool("required-only", false, "validate required fields and units only; skip type and enum checks")
	flags.String("prompts", "", "directory of .twig templates overriding the built-in prompts")
	flags.Int("retry-ceiling", 1, "repair attempts per failed record before it is discarded")
	flags.Duration("timeout", gateway.DefaultTimeout, "per LLM call timeout")
	flags.IntP("concurrency", "c", 1, "concurrent extraction calls")
	flags.String("max-document-size", "10MiB", "max document size (e.g., 512KB, 10MiB; 0 = unlimited)")
	flags.Int("min-section-length", segment.DefaultMinLength, "sections shorter than this are ignored")
}

// bindAgentFlags binds the shared flags of the running command to viper.
func bindAgentFlags(flags *pflag.FlagSet) {
	for key, name := range map[string]string{
		"provider":           "provider",
		"model":              "model",
		"api_key":            "api-key",
		"base_url":           "base-url",
		"rate_limit":         "rate-limit",
		"goals":              "goals",
		"schema":             "schema",
		"required_only":      "required-only",
		"prompts":            "prompts",
		"retry_ceiling":      "retry-ceiling",
		"timeout":            "timeout",
		"concurrency":        "concurrency",
		"max_document_size":  "max-document-size",
		"min_section_length": "min-section-length",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

// agentOptions builds agent options from the bound configuration. Extra
// observers are notified of every model call after the debug log.
func agentOptions(observers ...llm.LLMObserver) ([]agent.Option, error) {
	provider := viper.GetString("provider")
	if provider == "" {
		provider = llm.DetectProvider()
		logger.Debug("auto-detected provider", "provider", provider)
	}
	if !llm.IsRegistered(provider) {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", provider, strings.Join(llm.AvailableProviders(), ", "))
	}

	timeout := viper.GetDuration("timeout")
	opts := []agent.Option{
		agent.WithEndpoint(gateway.Endpoint{
			BaseURL:   viper.GetString("base_url"),
			ModelName: viper.GetString("model"),
			APIKey:    viper.GetString("api_key"),
		}),
		agent.WithGatewayOptions(gateway.Options{
			Provider:  provider,
			Timeout:   timeout,
			RateLimit: viper.GetFloat64("rate_limit"),
			Burst:     1,
			Observer:  llm.NewMultiObserver(append([]llm.LLMObserver{llm.ObserverFunc(logLLMCall)}, observers...)...),
		}),
		agent.WithTimeout(timeout),
		agent.WithRetryCeiling(viper.GetInt("retry_ceiling")),
		agent.WithConcurrency(viper.GetInt("concurrency")),
		agent.WithSegmenter(segment.New(segment.Segmenter{MinLength: viper.GetInt("min_section_length")})),
	}

	// Max document size (empty means the default, 0 means unlimited)
	if sizeStr := strings.TrimSpace(viper.GetString("max_document_size")); sizeStr != "" {
		n, err := humanize.ParseBytes(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid max-document-size %q: %w", sizeStr, err)
		}
		opts = append(opts, agent.WithMaxDocumentSize(int64(n)))
	}

	if path := viper.GetString("goals"); path != "" {
		goals, err := plan.LoadGoals(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("goals loaded", "path", path, "count", len(goals))
		opts = append(opts, agent.WithPlanner(goals))
	}

	s := schema.Constraint()
	if path := viper.GetString("schema"); path != "" {
		var err error
		if s, err = schema.FromFile(path); err != nil {
			return nil, err
		}
		logger.Debug("schema loaded", "name", s.Name, "fields", len(s.Fields))
	}
	if viper.GetBool("required_only") {
		s.RequiredOnly = true
	}
	opts = append(opts, agent.WithSchema(s))

	if dir := viper.GetString("prompts"); dir != "" {
		r, err := prompt.New(s, prompt.WithFS(os.DirFS(dir), "."))
		if err != nil {
			return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
		}
		logger.Debug("prompt templates loaded", "dir", dir)
		opts = append(opts, agent.WithPrompts(r))
	}

	return opts, nil
}

func logLLMCall(_ context.Context, e llm.LLMCallEvent) {
	args := []any{
		"provider", e.Provider,
		"model", e.Model,
		"duration", e.Duration.Round(time.Millisecond),
	}
	if e.Response != nil {
		args = append(args,
			"input_tokens", e.Response.Usage.InputTokens,
			"output_tokens", e.Response.Usage.OutputTokens,
			"finish_reason", e.Response.FinishReason,
		)
	}
	if e.Error != nil {
		args = append(args, "error", e.Error)
	}
	logger.Debug("llm call", args...)
}
