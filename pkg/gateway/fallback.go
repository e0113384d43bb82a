package gateway

import (
	"context"
	"strings"
	"time"
)

// FallbackRule maps a substring of the user prompt to a canned response.
type FallbackRule struct {
	Contains string `json:"contains" yaml:"contains"`
	Response string `json:"response" yaml:"response"`
}

// Fallback is the degraded-mode Generator used when no backend is
// available. It never performs I/O and its output depends only on the user
// prompt.
type Fallback struct {
	Rules   []FallbackRule `json:"rules" yaml:"rules"`
	Default string         `json:"default" yaml:"default"`
}

// DefaultFallback returns the stock degraded-mode rules.
func DefaultFallback() *Fallback {
	return &Fallback{
		Rules: []FallbackRule{
			{
				Contains: "防火墙",
				Response: `{"applicable_object": "防火墙", "constraint_content": "耐火极限", "value": 4.0, "operator": ">="}`,
			},
		},
		Default: "[]",
	}
}

// Generate returns the response of the first rule whose Contains appears in
// userPrompt, or Default.
func (f *Fallback) Generate(ctx context.Context, _, userPrompt string, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, r := range f.Rules {
		if r.Contains != "" && strings.Contains(userPrompt, r.Contains) {
			return r.Response, nil
		}
	}
	if f.Default == "" {
		return "[]", nil
	}
	return f.Default, nil
}

var _ Generator = (*Fallback)(nil)
