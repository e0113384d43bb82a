package agent

import (
	"encoding/json"

	"github.com/jmylchreest/specagent/pkg/plan"
	"github.com/jmylchreest/specagent/pkg/segment"
)

// RepairGoalID tags results produced by a repair prompt.
const RepairGoalID = "repair"

// Run status values.
const (
	StatusCompleted             = "completed"
	StatusCompletedWithFailures = "completed_with_failures"
	StatusFailed                = "failed"
)

// ExtractionResult is one unparsed model response awaiting validation.
type ExtractionResult struct {
	RawText    string
	SourceRef  string
	GoalID     string
	RetryCount int
}

// FailedItem is a model output that did not validate. Exactly one of Item
// and RawText is meaningful: RawText holds output that never parsed into an
// array, Item holds an array element that failed the schema.
type FailedItem struct {
	Item       any
	RawText    string
	Errors     []string
	SourceRef  string
	RetryCount int
}

// Payload returns the invalid JSON text to show the model in a repair prompt.
func (f FailedItem) Payload() string {
	if f.RawText != "" {
		return f.RawText
	}
	b, err := json.Marshal(f.Item)
	if err != nil {
		return ""
	}
	return string(b)
}

// Record is a validated constraint record. Keys follow the record schema.
type Record map[string]any

// Metadata is stamped on every finalized record.
type Metadata struct {
	ExtractionTimestamp string  `json:"extraction_timestamp" yaml:"extraction_timestamp"`
	AgentVersion        string  `json:"agent_version" yaml:"agent_version"`
	ConfidenceScore     float64 `json:"confidence_score" yaml:"confidence_score"`
}

// RunState is the mutable context threaded through every stage of one run.
type RunState struct {
	State     State
	Document  string
	Chunks    []segment.Chunk
	Goals     []plan.Goal
	Pending   []ExtractionResult
	Validated []Record
	Failed    []FailedItem
	// Discarded counts failed items dropped after reaching the retry ceiling.
	Discarded int
	// ValidationPasses counts entries into VALIDATION.
	ValidationPasses int
	Err              string
	Output           *Output
}

// NewRunState returns a RunState positioned at StateInit.
func NewRunState() *RunState {
	return &RunState{State: StateInit}
}
