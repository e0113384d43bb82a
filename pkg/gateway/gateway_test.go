package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/specagent/pkg/llm"
)

// stubProvider is an llm.Provider with scripted behaviour.
type stubProvider struct {
	mu      sync.Mutex
	reqs    []llm.Request
	content string
	err     error
	delay   time.Duration
}

func (s *stubProvider) Execute(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, Model: "stub-model"}, nil
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }

// --- LLM Gateway Tests ---

func TestLLM_Generate(t *testing.T) {
	p := &stubProvider{content: "[]"}
	g := NewLLM(p)

	out, err := g.Generate(context.Background(), "sys", "user", 0)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if out != "[]" {
		t.Errorf("expected [], got %q", out)
	}

	req := p.reqs[0]
	if req.Temperature != DefaultTemperature || req.MaxTokens != DefaultMaxTokens {
		t.Errorf("unexpected sampling params %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem || req.Messages[1].Content != "user" {
		t.Errorf("unexpected messages %+v", req.Messages)
	}
}

func TestLLM_Generate_Timeout(t *testing.T) {
	p := &stubProvider{content: "[]", delay: time.Second}
	g := NewLLM(p)

	_, err := g.Generate(context.Background(), "sys", "user", 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestLLM_Generate_ProviderError(t *testing.T) {
	boom := errors.New("connection refused")
	g := NewLLM(&stubProvider{err: boom})

	_, err := g.Generate(context.Background(), "sys", "user", time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("provider error should not be reported as timeout")
	}
}

func TestLLM_Generate_Observer(t *testing.T) {
	var events []llm.LLMCallEvent
	obs := llm.ObserverFunc(func(_ context.Context, e llm.LLMCallEvent) {
		events = append(events, e)
	})
	g := NewLLM(&stubProvider{content: "ok"}, WithObserver(obs))

	if _, err := g.Generate(context.Background(), "s", "u", time.Second); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Provider != "stub" || events[0].Response == nil || events[0].Response.Content != "ok" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestLLM_Options(t *testing.T) {
	p := &stubProvider{content: "[]"}
	g := NewLLM(p, WithTemperature(0.5), WithMaxTokens(256), WithTimeout(time.Minute))

	if g.timeout != time.Minute {
		t.Errorf("expected timeout 1m, got %s", g.timeout)
	}
	if _, err := g.Generate(context.Background(), "s", "u", 0); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if p.reqs[0].Temperature != 0.5 || p.reqs[0].MaxTokens != 256 {
		t.Errorf("options not applied: %+v", p.reqs[0])
	}
}

func TestLLM_RateLimit_CancelledContext(t *testing.T) {
	g := NewLLM(&stubProvider{content: "[]"}, WithRateLimit(0.001, 1))

	// The first call consumes the only token.
	if _, err := g.Generate(context.Background(), "s", "u", time.Second); err != nil {
		t.Fatalf("first Generate() error: %v", err)
	}
	if _, err := g.Generate(context.Background(), "s", "u", 20*time.Millisecond); err == nil {
		t.Fatal("expected rate limiter to fail within the timeout")
	}
}

func TestWithRateLimit_Disabled(t *testing.T) {
	g := NewLLM(&stubProvider{}, WithRateLimit(0, 5))
	if g.limiter != nil {
		t.Error("expected no limiter for zero rps")
	}
}

// --- Fallback Tests ---

func TestFallback_Generate(t *testing.T) {
	f := DefaultFallback()

	out, err := f.Generate(context.Background(), "sys", "提取 防火墙 的约束", 0)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(out, `"applicable_object": "防火墙"`) {
		t.Errorf("expected firewall response, got %q", out)
	}

	out, _ = f.Generate(context.Background(), "防火墙 in system prompt only", "other text", 0)
	if out != "[]" {
		t.Errorf("expected match on user prompt only, got %q", out)
	}
}

func TestFallback_CustomRulesAndDefault(t *testing.T) {
	f := &Fallback{
		Rules: []FallbackRule{
			{Contains: "", Response: "ignored"},
			{Contains: "beam", Response: `[{"x":1}]`},
		},
	}
	if out, _ := f.Generate(context.Background(), "", "steel beam", 0); out != `[{"x":1}]` {
		t.Errorf("unexpected response %q", out)
	}
	if out, _ := f.Generate(context.Background(), "", "nothing", 0); out != "[]" {
		t.Errorf("expected [] default, got %q", out)
	}
}

func TestFallback_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := DefaultFallback().Generate(ctx, "", "防火墙", 0); err == nil {
		t.Fatal("expected context error")
	}
}

// --- New Tests ---

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SPECAGENT_LLM_API_KEY", "ZHIPUAI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestNew_NoKeyFallsBack(t *testing.T) {
	clearKeys(t)

	g := New(Endpoint{}, Options{})
	if _, ok := g.(*Fallback); !ok {
		t.Fatalf("expected *Fallback, got %T", g)
	}
}

func TestNew_UnknownProviderFallsBack(t *testing.T) {
	custom := &Fallback{Default: `[{"a":1}]`}
	g := New(Endpoint{APIKey: "k"}, Options{Provider: "nope", Fallback: custom})
	if g != Generator(custom) {
		t.Fatalf("expected the configured fallback, got %T", g)
	}
}

func TestNew_EndpointDefaults(t *testing.T) {
	clearKeys(t)

	g := New(Endpoint{APIKey: "k"}, Options{})
	l, ok := g.(*LLM)
	if !ok {
		t.Fatalf("expected *LLM, got %T", g)
	}
	if l.Provider().Name() != "zhipu" || l.Provider().Model() != "glm-4-flash" {
		t.Errorf("unexpected provider %s/%s", l.Provider().Name(), l.Provider().Model())
	}

	g = New(Endpoint{APIKey: "k", ModelName: "glm-4-plus"}, Options{Timeout: 5 * time.Second})
	l = g.(*LLM)
	if l.Provider().Model() != "glm-4-plus" {
		t.Errorf("expected model override, got %s", l.Provider().Model())
	}
	if l.timeout != 5*time.Second {
		t.Errorf("expected timeout override, got %s", l.timeout)
	}
}

func TestNew_KeyFromEnv(t *testing.T) {
	clearKeys(t)
	t.Setenv("ZHIPUAI_API_KEY", "env-key")

	if _, ok := New(Endpoint{}, Options{}).(*LLM); !ok {
		t.Fatal("expected env key to enable the LLM gateway")
	}
}

func TestNew_OllamaNeedsNoKey(t *testing.T) {
	clearKeys(t)
	if _, ok := New(Endpoint{}, Options{Provider: "ollama"}).(*LLM); !ok {
		t.Fatal("expected ollama gateway without a key")
	}
}

// --- Recorder Tests ---

func TestRecorder_ScriptThenDefault(t *testing.T) {
	r := NewRecorder("first", "second")
	r.Replies = append(r.Replies, Reply{Err: errors.New("down")})

	ctx := context.Background()
	a, _ := r.Generate(ctx, "s", "u1", time.Second)
	b, _ := r.Generate(ctx, "s", "u2", time.Second)
	_, err := r.Generate(ctx, "s", "u3", time.Second)
	d, _ := r.Generate(ctx, "s", "u4", time.Second)

	if a != "first" || b != "second" || err == nil || d != "[]" {
		t.Errorf("unexpected replies %q %q %v %q", a, b, err, d)
	}
	calls := r.Calls()
	if len(calls) != 4 || calls[3].UserPrompt != "u4" {
		t.Errorf("unexpected calls %+v", calls)
	}
}

func TestRecorder_Respond(t *testing.T) {
	r := &Recorder{Respond: func(_, user string) (string, error) {
		return strings.ToUpper(user), nil
	}}
	out, _ := r.Generate(context.Background(), "", "abc", 0)
	if out != "ABC" {
		t.Errorf("expected ABC, got %q", out)
	}
}
