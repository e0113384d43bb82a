package agent

import (
	"time"

	"github.com/jmylchreest/specagent/pkg/gateway"
	"github.com/jmylchreest/specagent/pkg/plan"
	"github.com/jmylchreest/specagent/pkg/prompt"
	"github.com/jmylchreest/specagent/pkg/schema"
	"github.com/jmylchreest/specagent/pkg/segment"
)

// Config holds all agent configuration.
type Config struct {
	// Gateway is used as-is when set. Otherwise one is built from Endpoint
	// and GatewayOptions.
	Gateway        gateway.Generator
	Endpoint       gateway.Endpoint
	GatewayOptions gateway.Options

	Schema    schema.Schema
	Planner   plan.Planner
	Segmenter *segment.Segmenter
	Prompts   *prompt.Renderer

	// RetryCeiling is the number of repair attempts per failed item.
	RetryCeiling int
	// Timeout is the per-call gateway timeout.
	Timeout time.Duration
	// Concurrency bounds parallel gateway calls during extraction.
	Concurrency     int
	MaxDocumentSize int64

	// Now stamps extraction timestamps.
	Now func() time.Time
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Schema:          schema.Constraint(),
		Planner:         plan.DefaultGoals(),
		RetryCeiling:    1,
		Timeout:         gateway.DefaultTimeout,
		Concurrency:     1,
		MaxDocumentSize: DefaultMaxDocumentSize,
		Now:             time.Now,
	}
}

// Option configures an Agent.
type Option func(*Config)

// WithGateway sets the model gateway.
func WithGateway(g gateway.Generator) Option {
	return func(c *Config) {
		c.Gateway = g
	}
}

// WithEndpoint overrides the default model endpoint. Empty fields keep their
// defaults.
func WithEndpoint(ep gateway.Endpoint) Option {
	return func(c *Config) {
		if ep.BaseURL != "" {
			c.Endpoint.BaseURL = ep.BaseURL
		}
		if ep.ModelName != "" {
			c.Endpoint.ModelName = ep.ModelName
		}
		if ep.APIKey != "" {
			c.Endpoint.APIKey = ep.APIKey
		}
	}
}

// WithGatewayOptions sets the options used to build the default gateway.
func WithGatewayOptions(opts gateway.Options) Option {
	return func(c *Config) {
		c.GatewayOptions = opts
	}
}

// WithSchema sets the record schema.
func WithSchema(s schema.Schema) Option {
	return func(c *Config) {
		c.Schema = s
	}
}

// WithPlanner sets the extraction goal source.
func WithPlanner(p plan.Planner) Option {
	return func(c *Config) {
		c.Planner = p
	}
}

// WithSegmenter sets the document segmenter.
func WithSegmenter(s *segment.Segmenter) Option {
	return func(c *Config) {
		c.Segmenter = s
	}
}

// WithPrompts sets the prompt renderer.
func WithPrompts(r *prompt.Renderer) Option {
	return func(c *Config) {
		c.Prompts = r
	}
}

// WithRetryCeiling sets how many repair attempts a failed item gets.
func WithRetryCeiling(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.RetryCeiling = n
		}
	}
}

// WithTimeout sets the per-call gateway timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithConcurrency sets the number of concurrent extraction calls.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithMaxDocumentSize sets the ingest size limit in bytes. Zero disables it.
func WithMaxDocumentSize(n int64) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxDocumentSize = n
		}
	}
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}
