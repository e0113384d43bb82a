package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jmylchreest/specagent/internal/metrics"
	"github.com/jmylchreest/specagent/pkg/agent"
	"github.com/jmylchreest/specagent/pkg/billing"
	"github.com/jmylchreest/specagent/pkg/gateway"
)

const (
	testKey = "secret-key"

	fireWallDoc = "GB 50016 Code for fire protection design of buildings\n\n" +
		"5.1.2 Fire walls\nWalls with a fire-resistance rating of at least 3.00 h shall separate each fire compartment.\n\n" +
		"Notes"

	validFireWall = `[{"applicable_object": "fire wall", "constraint_content": "fire-resistance rating",
	"value": 3, "unit": "h", "operator": ">=", "source_ref": "model guess"}]`
)

func newTestServer(t *testing.T, g gateway.Generator) *Server {
	t.Helper()
	return New(Config{
		APIKey:       testKey,
		AgentOptions: []agent.Option{agent.WithGateway(g)},
	})
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gb50016.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func doRequest(t *testing.T, h http.Handler, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

// --- Health Tests ---

func TestHealth(t *testing.T) {
	srv := New(Config{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", got)
	}
}

func TestVersion(t *testing.T) {
	srv := New(Config{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/version", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"agent_version":"2.6.0"`) {
		t.Errorf("expected agent version in body, got %s", rec.Body.String())
	}
}

// --- Auth Tests ---

func TestAuth(t *testing.T) {
	path := writeDoc(t, fireWallDoc)

	tests := []struct {
		name       string
		serverKey  string
		clientKey  string
		wantStatus int
		wantError  string
	}{
		{"no server key", "", testKey, http.StatusInternalServerError, "AGENT_API_KEY not configured on the server."},
		{"missing client key", testKey, "", http.StatusUnauthorized, "Invalid API Key"},
		{"wrong client key", testKey, "nope", http.StatusUnauthorized, "Invalid API Key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := gateway.NewRecorder(validFireWall)
			srv := New(Config{APIKey: tt.serverKey, AgentOptions: []agent.Option{agent.WithGateway(rec)}})

			resp := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", tt.clientKey,
				ExtractRequest{DocumentPath: path})
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.Code)
			}
			if got := decodeError(t, resp); got != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, got)
			}
			if len(rec.Calls()) != 0 {
				t.Errorf("agent ran despite auth failure")
			}
		})
	}
}

// --- Extract Tests ---

func TestExtract_Success(t *testing.T) {
	path := writeDoc(t, fireWallDoc)
	srv := newTestServer(t, gateway.NewRecorder(validFireWall))

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey,
		ExtractRequest{DocumentPath: path, UserID: "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ExtractResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.TaskID, "task_") {
		t.Errorf("expected task_ prefix, got %q", resp.TaskID)
	}
	if resp.UserID != "alice" {
		t.Errorf("expected user alice, got %q", resp.UserID)
	}
	if resp.DocumentPath != path {
		t.Errorf("expected document path echoed, got %q", resp.DocumentPath)
	}
	if resp.Status != agent.StatusCompleted {
		t.Errorf("expected completed, got %q", resp.Status)
	}
	if resp.Result == nil || len(resp.Result.ValidatedItems) != 1 {
		t.Fatalf("expected one validated item, got %+v", resp.Result)
	}
	want := billing.Decision{Billable: true, Reason: billing.ReasonSuccess, Unit: billing.UnitPerCall}
	if resp.Billing != want {
		t.Errorf("billing = %+v, want %+v", resp.Billing, want)
	}
}

func TestExtract_DefaultUser(t *testing.T) {
	path := writeDoc(t, fireWallDoc)
	srv := newTestServer(t, gateway.NewRecorder("[]"))

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey,
		ExtractRequest{DocumentPath: path})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ExtractResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.UserID != defaultUserID {
		t.Errorf("expected %q, got %q", defaultUserID, resp.UserID)
	}
	if resp.Billing.Billable || resp.Billing.Reason != billing.ReasonEmptyDocument {
		t.Errorf("expected non-billable empty document, got %+v", resp.Billing)
	}
}

func TestExtract_PartialFailure(t *testing.T) {
	path := writeDoc(t, fireWallDoc+"\n\n5.1.3 Fire walls\nFire walls shall have a fire-resistance rating of not less than 4.00 h in every case.")
	rec := gateway.NewRecorder(validFireWall, `[{"applicable_object": "fire wall"}]`)
	rec.Default = gateway.Reply{Text: `[{"applicable_object": "fire wall"}]`}
	srv := newTestServer(t, rec)

	resp := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey,
		ExtractRequest{DocumentPath: path})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body ExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Result.FailedItemsCount != 1 {
		t.Fatalf("expected 1 failed item, got %d", body.Result.FailedItemsCount)
	}
	if !body.Billing.Billable || body.Billing.Reason != billing.ReasonPartialSuccess {
		t.Errorf("expected partial success billing, got %+v", body.Billing)
	}
}

func TestExtract_BadRequests(t *testing.T) {
	srv := newTestServer(t, gateway.NewRecorder())
	dir := t.TempDir()

	tests := []struct {
		name      string
		body      any
		wantError string
	}{
		{"malformed json", "{not json", "invalid request: expected JSON with 'document_path'"},
		{"empty path", ExtractRequest{}, "document_path is required"},
		{"missing file", ExtractRequest{DocumentPath: filepath.Join(dir, "nope.txt")}, "Document not found at path: " + filepath.Join(dir, "nope.txt")},
		{"directory", ExtractRequest{DocumentPath: dir}, "Document not found at path: " + dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeError(t, rec); got != tt.wantError {
				t.Errorf("expected %q, got %q", tt.wantError, got)
			}
		})
	}
}

func TestExtract_FailedRunNotBillable(t *testing.T) {
	// Binary content fails ingestion inside the agent; the run still answers 200.
	path := filepath.Join(t.TempDir(), "scan.bin")
	if err := os.WriteFile(path, []byte{0x00, 0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, gateway.NewRecorder())

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey,
		ExtractRequest{DocumentPath: path})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ExtractResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != agent.StatusFailed {
		t.Errorf("expected failed, got %q", resp.Status)
	}
	if resp.Billing.Billable || resp.Billing.Reason != billing.ReasonAgentFailure {
		t.Errorf("expected agent failure billing, got %+v", resp.Billing)
	}
}

func TestExtract_EndpointOverrideCredentials(t *testing.T) {
	t.Setenv("SPECAGENT_LLM_API_KEY", "server-secret")

	var (
		mu    sync.Mutex
		auths []string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "[]"}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}}`))
	}))
	defer upstream.Close()

	srv := New(Config{
		APIKey: testKey,
		AgentOptions: []agent.Option{
			agent.WithGatewayOptions(gateway.Options{Provider: "openai"}),
			agent.WithEndpoint(gateway.Endpoint{APIKey: "configured-secret"}),
		},
	})
	path := writeDoc(t, fireWallDoc)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey,
		ExtractRequest{DocumentPath: path, LLMBaseURL: upstream.URL})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without llm_api_key, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "llm_api_key") {
		t.Errorf("unexpected error %q", msg)
	}

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey,
		ExtractRequest{DocumentPath: path, LLMBaseURL: upstream.URL + "/", LLMAPIKey: "caller-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with llm_api_key, got %d", rec.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(auths) == 0 {
		t.Fatal("expected the caller's endpoint to be called")
	}
	for _, a := range auths {
		if a != "Bearer caller-key" {
			t.Errorf("upstream received Authorization %q, want the caller's key", a)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, gateway.NewRecorder())
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/extract", testKey, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

// --- Middleware Tests ---

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "internal server error" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestLogMiddleware_CapturesStatus(t *testing.T) {
	var seen int
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := logMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r)
		if rw, ok := w.(*responseWriter); ok {
			seen = rw.status
		}
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot || seen != http.StatusTeapot {
		t.Errorf("expected 418 recorded, got code=%d seen=%d", rec.Code, seen)
	}
}

// --- Metrics Tests ---

func TestMetrics_CountsRuns(t *testing.T) {
	path := writeDoc(t, fireWallDoc)
	m := metrics.New()
	srv := New(Config{
		APIKey:       testKey,
		AgentOptions: []agent.Option{agent.WithGateway(gateway.NewRecorder(validFireWall))},
		Metrics:      m,
	})

	if rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/extract", testKey, ExtractRequest{DocumentPath: path}); rec.Code != http.StatusOK {
		t.Fatalf("extract: expected 200, got %d", rec.Code)
	}

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`specagent_runs_total{status="completed"} 1`,
		`specagent_billing_decisions_total{billable="true",reason="SUCCESSFUL_EXTRACTION"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestMetrics_NotRoutedWithoutCollector(t *testing.T) {
	srv := New(Config{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
