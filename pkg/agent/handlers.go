package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/specagent/internal/version"
	"github.com/jmylchreest/specagent/pkg/plan"
	"github.com/jmylchreest/specagent/pkg/segment"
)

// ConfidenceScore is stamped on every finalized record.
const ConfidenceScore = 0.98

func (a *Agent) init(_ context.Context, _ *RunState) State {
	return StateDocumentIngest
}

func (a *Agent) ingest(_ context.Context, rs *RunState) State {
	data, err := a.source.Read(a.config.MaxDocumentSize)
	if err == nil {
		rs.Document, err = decodeDocument(data, a.config.MaxDocumentSize)
	}
	if err != nil {
		rs.Err = fmt.Sprintf("Document ingestion failed: %v", err)
		return StateError
	}
	a.log.Info("document ingested", "chars", len([]rune(rs.Document)), "bytes", len(data))
	return StateStructureAnalysis
}

func (a *Agent) analyzeStructure(_ context.Context, rs *RunState) State {
	rs.Chunks = a.split.Split(rs.Document)
	a.log.Info("document structure analyzed", "chunks", len(rs.Chunks))
	return StatePlanning
}

func (a *Agent) planExtraction(_ context.Context, rs *RunState) State {
	if a.config.Planner != nil {
		rs.Goals = a.config.Planner.Plan()
	}
	a.log.Info("extraction plan created", "goals", len(rs.Goals))
	return StateExtraction
}

// work is one (goal, chunk) gateway call.
type work struct {
	goal  plan.Goal
	chunk segment.Chunk
}

func (a *Agent) extract(ctx context.Context, rs *RunState) State {
	var jobs []work
	for _, goal := range rs.Goals {
		for _, chunk := range rs.Chunks {
			if chunk.Relevant(goal.Keywords) {
				jobs = append(jobs, work{goal: goal, chunk: chunk})
			}
		}
	}

	results := make([]ExtractionResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.config.Concurrency, 1))
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = ExtractionResult{
				RawText:   a.extractOne(gctx, job),
				SourceRef: job.chunk.SourceRef,
				GoalID:    job.goal.ID,
			}
			return nil
		})
	}
	_ = g.Wait()

	rs.Pending = append(rs.Pending, results...)
	a.log.Info("extraction phase complete", "raw_results", len(results))
	return StateValidation
}

func (a *Agent) extractOne(ctx context.Context, job work) string {
	system, user, err := a.prompts.Extraction(job.goal, job.chunk)
	if err == nil {
		var raw string
		raw, err = a.gateway.Generate(ctx, system, user, a.config.Timeout)
		if err == nil {
			return raw
		}
	}
	a.log.Error("LLM call failed", "goal", job.goal.ID, "source_ref", job.chunk.SourceRef, "error", err)
	a.event(TraceGatewayError, StateExtraction, job.chunk.SourceRef, 0, err.Error())
	return ""
}

func (a *Agent) validate(_ context.Context, rs *RunState) State {
	rs.ValidationPasses++

	for len(rs.Pending) > 0 {
		result := rs.Pending[0]
		rs.Pending = rs.Pending[1:]

		text := stripCodeFence(result.RawText)
		if text == "" {
			continue
		}

		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			a.log.Warn("JSON parsing failed", "source_ref", result.SourceRef, "error", err)
			rs.Failed = append(rs.Failed, FailedItem{
				RawText:    result.RawText,
				Errors:     []string{err.Error()},
				SourceRef:  result.SourceRef,
				RetryCount: result.RetryCount,
			})
			continue
		}

		items, ok := parsed.([]any)
		if !ok {
			a.log.Warn("LLM output is not a JSON array", "source_ref", result.SourceRef)
			rs.Failed = append(rs.Failed, FailedItem{
				RawText:    result.RawText,
				Errors:     []string{"LLM output is not a JSON array."},
				SourceRef:  result.SourceRef,
				RetryCount: result.RetryCount,
			})
			continue
		}

		for _, item := range items {
			valid, errs := a.config.Schema.Validate(item)
			if valid {
				rec := Record(item.(map[string]any))
				rec["source_ref"] = result.SourceRef
				rs.Validated = append(rs.Validated, rec)
				continue
			}
			a.log.Warn("schema validation failed", "source_ref", result.SourceRef, "errors", errs)
			rs.Failed = append(rs.Failed, FailedItem{
				Item:       item,
				Errors:     errs,
				SourceRef:  result.SourceRef,
				RetryCount: result.RetryCount,
			})
		}
	}

	if len(rs.Failed) > 0 {
		a.log.Info("items failed validation, entering repair", "failed", len(rs.Failed))
		return StateRepair
	}
	a.log.Info("all items validated", "validated", len(rs.Validated))
	return StateFinalize
}

func (a *Agent) repair(ctx context.Context, rs *RunState) State {
	toRetry := rs.Failed
	rs.Failed = nil

	for _, failed := range toRetry {
		if failed.RetryCount >= a.config.RetryCeiling {
			rs.Discarded++
			a.log.Error("max retries exceeded, discarding item",
				"source_ref", failed.SourceRef, "retry_count", failed.RetryCount, "errors", failed.Errors)
			a.event(TraceDiscard, StateRepair, failed.SourceRef, failed.RetryCount,
				strings.Join(failed.Errors, "; "))
			continue
		}

		attempt := failed.RetryCount + 1
		a.log.Info("attempting repair", "source_ref", failed.SourceRef, "attempt", attempt)
		a.event(TraceRepair, StateRepair, failed.SourceRef, attempt, strings.Join(failed.Errors, "; "))

		raw := ""
		system, user, err := a.prompts.Repair(failed.Errors, failed.Payload())
		if err == nil {
			raw, err = a.gateway.Generate(ctx, system, user, a.config.Timeout)
		}
		if err != nil {
			a.log.Error("repair call failed", "source_ref", failed.SourceRef, "error", err)
			a.event(TraceGatewayError, StateRepair, failed.SourceRef, attempt, err.Error())
			raw = ""
		}

		rs.Pending = append(rs.Pending, ExtractionResult{
			RawText:    raw,
			SourceRef:  failed.SourceRef,
			GoalID:     RepairGoalID,
			RetryCount: attempt,
		})
	}

	return StateValidation
}

func (a *Agent) finalize(_ context.Context, rs *RunState) State {
	meta := Metadata{
		ExtractionTimestamp: a.config.Now().Format(time.RFC3339),
		AgentVersion:        version.AgentVersion,
		ConfidenceScore:     ConfidenceScore,
	}

	items := make([]Record, 0, len(rs.Validated))
	for _, rec := range rs.Validated {
		out := make(Record, len(rec)+3)
		for k, v := range rec {
			out[k] = v
		}
		out["id"] = uuid.NewString()
		out["source_document"] = a.source.Name()
		out["extraction_metadata"] = meta
		items = append(items, out)
	}

	rs.Output = &Output{
		Status:           StatusCompleted,
		ValidatedItems:   items,
		FailedItemsCount: rs.Discarded,
	}
	a.log.Info("finalization complete", "constraints", len(items), "failed_items_count", rs.Discarded)
	return StateDone
}

func (a *Agent) handleError(_ context.Context, rs *RunState) State {
	a.log.Error("agent entered ERROR state", "error", rs.Err)
	rs.Output = &Output{Status: StatusFailed, Error: rs.Err}
	return StateDone
}

// stripCodeFence removes a markdown code block wrapped around the output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "[{") {
		s = s[nl+1:] // language tag
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
