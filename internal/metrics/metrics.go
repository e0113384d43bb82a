// Package metrics exposes Prometheus counters for extraction runs and model
// calls.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/specagent/pkg/agent"
	"github.com/jmylchreest/specagent/pkg/billing"
	"github.com/jmylchreest/specagent/pkg/llm"
)

const namespace = "specagent"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	records     *prometheus.CounterVec
	billing     *prometheus.CounterVec
	llmCalls    *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished extraction runs by billing status.",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records by outcome (validated or discarded).",
		}, []string{"outcome"}),
		billing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_decisions_total",
			Help:      "Billing decisions by reason.",
		}, []string{"billable", "reason"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Backend model calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Backend model call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"provider"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the backend, by direction.",
		}, []string{"provider", "direction"}),
	}

	m.registry.MustRegister(m.runs, m.records, m.billing, m.llmCalls, m.llmDuration, m.llmTokens)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run and its billing decision.
func (m *Metrics) ObserveRun(out *agent.Output, d billing.Decision) {
	if out == nil {
		return
	}
	m.runs.WithLabelValues(out.BillingStatus()).Inc()
	m.records.WithLabelValues("validated").Add(float64(len(out.ValidatedItems)))
	m.records.WithLabelValues("discarded").Add(float64(out.FailedItemsCount))

	billable := "false"
	if d.Billable {
		billable = "true"
	}
	m.billing.WithLabelValues(billable, d.Reason).Inc()
}

// OnLLMCall implements llm.LLMObserver.
func (m *Metrics) OnLLMCall(_ context.Context, e llm.LLMCallEvent) {
	outcome := "ok"
	if e.Error != nil {
		outcome = "error"
	}
	m.llmCalls.WithLabelValues(e.Provider, outcome).Inc()
	m.llmDuration.WithLabelValues(e.Provider).Observe(e.Duration.Seconds())

	if e.Response != nil {
		m.llmTokens.WithLabelValues(e.Provider, "input").Add(float64(e.Response.Usage.InputTokens))
		m.llmTokens.WithLabelValues(e.Provider, "output").Add(float64(e.Response.Usage.OutputTokens))
	}
}
