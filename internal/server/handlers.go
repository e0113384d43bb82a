package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/internal/version"
	"github.com/jmylchreest/specagent/pkg/agent"
	"github.com/jmylchreest/specagent/pkg/billing"
	"github.com/jmylchreest/specagent/pkg/gateway"
)

const defaultUserID = "default_user"

// ExtractRequest is the body of POST /v1/extract.
type ExtractRequest struct {
	DocumentPath string `json:"document_path"`
	UserID       string `json:"user_id,omitempty"`
	LLMBaseURL   string `json:"llm_base_url,omitempty"`
	LLMModelName string `json:"llm_model_name,omitempty"`
	LLMAPIKey    string `json:"llm_api_key,omitempty"`
}

// ExtractResponse is the body returned by POST /v1/extract.
type ExtractResponse struct {
	TaskID       string           `json:"task_id"`
	UserID       string           `json:"user_id"`
	DocumentPath string           `json:"document_path"`
	Status       string           `json:"status"`
	Result       *agent.Output    `json:"result"`
	Billing      billing.Decision `json:"billing"`
}

// POST /v1/extract
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected JSON with 'document_path'")
		return
	}
	if req.DocumentPath == "" {
		writeError(w, http.StatusBadRequest, "document_path is required")
		return
	}
	if info, err := os.Stat(req.DocumentPath); err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "Document not found at path: "+req.DocumentPath)
		return
	}
	// A caller-chosen host must not receive the server's own credentials.
	if req.LLMBaseURL != "" && req.LLMAPIKey == "" {
		writeError(w, http.StatusBadRequest, "llm_api_key is required when llm_base_url is set")
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	taskID := "task_" + uuid.NewString()
	log := logger.With("task_id", taskID, "user_id", req.UserID)

	opts := append([]agent.Option{}, s.cfg.AgentOptions...)
	opts = append(opts, agent.WithEndpoint(gateway.Endpoint{
		BaseURL:   req.LLMBaseURL,
		ModelName: req.LLMModelName,
		APIKey:    req.LLMAPIKey,
	}))

	a, err := agent.New(agent.File(req.DocumentPath), opts...)
	if err != nil {
		log.Error("agent setup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "agent setup failed")
		return
	}

	ctx := r.Context()
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	log.Info("starting agent task", "document_path", req.DocumentPath)
	out, err := a.Run(ctx)
	if err != nil {
		log.Error("agent task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "agent execution failed to produce output")
		return
	}

	decision := billing.Decide(billing.Summary{
		Status:         out.BillingStatus(),
		ValidatedCount: len(out.ValidatedItems),
	})
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveRun(out, decision)
	}
	if decision.Billable {
		log.Info("BILLABLE_EVENT", "reason", decision.Reason)
	} else {
		log.Info("non-billable task", "reason", decision.Reason)
	}

	writeJSON(w, http.StatusOK, ExtractResponse{
		TaskID:       taskID,
		UserID:       req.UserID,
		DocumentPath: req.DocumentPath,
		Status:       out.Status,
		Result:       out,
		Billing:      decision,
	})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /version
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
