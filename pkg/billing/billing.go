// Package billing decides whether a finished extraction run is billable.
package billing

// Machine-readable billing reasons.
const (
	ReasonSuccess           = "SUCCESSFUL_EXTRACTION"
	ReasonPartialSuccess    = "PARTIAL_EXTRACTION_HIGH_CONFIDENCE"
	ReasonAgentFailure      = "AGENT_EXECUTION_FAILURE"
	ReasonValidationFailure = "ALL_ITEMS_VALIDATION_FAILED"
	ReasonEmptyDocument     = "EMPTY_OR_INVALID_DOCUMENT"
)

// UnitPerCall is the only billing unit.
const UnitPerCall = "per_call"

// Summary is the part of a run's result billing looks at.
type Summary struct {
	Status         string `json:"status" yaml:"status"`
	ValidatedCount int    `json:"validated_count" yaml:"validated_count"`
}

// Decision is the billing verdict for one run.
type Decision struct {
	Billable bool   `json:"billable" yaml:"billable"`
	Reason   string `json:"reason" yaml:"reason"`
	Unit     string `json:"unit" yaml:"unit"`
}

// Decide maps a run summary onto a billing decision. Unknown statuses are
// never billable.
func Decide(s Summary) Decision {
	d := Decision{Reason: ReasonAgentFailure, Unit: UnitPerCall}

	switch s.Status {
	case "completed":
		if s.ValidatedCount > 0 {
			d.Billable, d.Reason = true, ReasonSuccess
		} else {
			d.Reason = ReasonEmptyDocument
		}
	case "completed_with_failures":
		if s.ValidatedCount > 0 {
			d.Billable, d.Reason = true, ReasonPartialSuccess
		} else {
			d.Reason = ReasonValidationFailure
		}
	}

	return d
}
