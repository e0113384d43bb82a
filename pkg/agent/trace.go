package agent

import (
	"sync"
	"time"
)

// TraceKind classifies a trace event.
type TraceKind string

const (
	TraceTransition   TraceKind = "transition"
	TraceRepair       TraceKind = "repair"
	TraceDiscard      TraceKind = "discard"
	TraceGatewayError TraceKind = "gateway_error"
)

// TraceEvent is one entry in a run's audit trail.
type TraceEvent struct {
	Time      time.Time `json:"time"`
	Kind      TraceKind `json:"kind"`
	// From and To are equal for events raised inside a state.
	From      State     `json:"from"`
	To        State     `json:"to"`
	SourceRef string    `json:"source_ref,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// trace is an append-only event log safe for concurrent appends.
type trace struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (t *trace) add(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func (t *trace) snapshot() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
