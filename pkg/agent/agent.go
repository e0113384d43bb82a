// Package agent runs the extraction-validation-repair state machine that turns
// a regulatory document into validated constraint records.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/internal/version"
	"github.com/jmylchreest/specagent/pkg/gateway"
	"github.com/jmylchreest/specagent/pkg/prompt"
	"github.com/jmylchreest/specagent/pkg/segment"
)

// ErrAlreadyRun is returned by Run on an agent that has already run.
var ErrAlreadyRun = errors.New("agent has already run")

// handler executes one state and returns the next.
type handler func(ctx context.Context, rs *RunState) State

// Agent processes a single document. It is not reusable: create a new Agent
// for every run.
type Agent struct {
	source  Source
	config  Config
	gateway gateway.Generator
	prompts *prompt.Renderer
	split   *segment.Segmenter
	log     *slog.Logger

	handlers map[State]handler
	trace    trace
	started  atomic.Bool
}

// New creates an agent for the given document.
func New(src Source, opts ...Option) (*Agent, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if src == nil {
		src = File("")
	}

	g := cfg.Gateway
	if g == nil {
		gwOpts := cfg.GatewayOptions
		if gwOpts.Timeout == 0 {
			gwOpts.Timeout = cfg.Timeout
		}
		g = gateway.New(cfg.Endpoint, gwOpts)
	}

	prompts := cfg.Prompts
	if prompts == nil {
		var err error
		prompts, err = prompt.New(cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
	}

	split := cfg.Segmenter
	if split == nil {
		split = segment.New(segment.Segmenter{})
	}

	a := &Agent{
		source:  src,
		config:  cfg,
		gateway: g,
		prompts: prompts,
		split:   split,
		log:     logger.With("document", src.Name()),
	}
	a.handlers = map[State]handler{
		StateInit:              a.init,
		StateDocumentIngest:    a.ingest,
		StateStructureAnalysis: a.analyzeStructure,
		StatePlanning:          a.planExtraction,
		StateExtraction:        a.extract,
		StateValidation:        a.validate,
		StateRepair:            a.repair,
		StateFinalize:          a.finalize,
		StateError:             a.handleError,
	}
	return a, nil
}

// Run drives the state machine to DONE and returns the final output.
// Item-level failures are reported in the Output; the only error returned is
// ErrAlreadyRun. Cancelling ctx routes the run to ERROR at the next state
// boundary.
func (a *Agent) Run(ctx context.Context) (*Output, error) {
	if !a.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	a.log.Info("agent execution start", "agent_version", version.AgentVersion)
	start := time.Now()

	rs := NewRunState()
	for rs.State != StateDone {
		a.Step(ctx, rs)
	}

	a.log.Info("agent execution end",
		"status", rs.Output.Status,
		"validated", len(rs.Output.ValidatedItems),
		"failed_items_count", rs.Output.FailedItemsCount,
		"duration", time.Since(start))
	return rs.Output, nil
}

// Step executes the handler for rs.State once and moves rs to the state it
// returns. A cancelled context sends any state other than ERROR and DONE to
// ERROR without running its handler.
func (a *Agent) Step(ctx context.Context, rs *RunState) State {
	if rs.State == StateDone {
		return StateDone
	}

	if err := ctx.Err(); err != nil && rs.State != StateError {
		rs.Err = fmt.Sprintf("run aborted in %s: %v", rs.State, err)
		a.transition(rs, StateError)
		return rs.State
	}

	h, ok := a.handlers[rs.State]
	if !ok {
		rs.Err = fmt.Sprintf("unknown state: %s", rs.State)
		a.transition(rs, StateError)
		return rs.State
	}

	a.transition(rs, h(ctx, rs))
	return rs.State
}

// Trace returns a copy of the run's audit trail.
func (a *Agent) Trace() []TraceEvent {
	return a.trace.snapshot()
}

func (a *Agent) transition(rs *RunState, to State) {
	from := rs.State
	if from == to {
		return
	}
	if !CanTransition(from, to) {
		rs.Err = fmt.Sprintf("illegal transition %s -> %s", from, to)
		to = StateError
		if from == StateError {
			to = StateDone
		}
	}
	a.log.Info("STATE TRANSITION", "from", from.String(), "to", to.String())
	a.trace.add(TraceEvent{Time: a.config.Now(), Kind: TraceTransition, From: from, To: to})
	rs.State = to
}

func (a *Agent) event(kind TraceKind, state State, sourceRef string, attempt int, msg string) {
	a.trace.add(TraceEvent{
		Time:      a.config.Now(),
		Kind:      kind,
		From:      state,
		To:        state,
		SourceRef: sourceRef,
		Attempt:   attempt,
		Message:   msg,
	})
}
