package agent

// State is a stage of the extraction run.
type State int

const (
	StateInit State = iota
	StateDocumentIngest
	StateStructureAnalysis
	StatePlanning
	StateExtraction
	StateValidation
	StateRepair
	StateFinalize
	StateError
	StateDone
)

var stateNames = [...]string{
	StateInit:              "INIT",
	StateDocumentIngest:    "DOCUMENT_INGEST",
	StateStructureAnalysis: "STRUCTURE_ANALYSIS",
	StatePlanning:          "PLANNING",
	StateExtraction:        "EXTRACTION",
	StateValidation:        "VALIDATION",
	StateRepair:            "REPAIR",
	StateFinalize:          "FINALIZE",
	StateError:             "ERROR",
	StateDone:              "DONE",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the legal successors of each state. Every non-terminal
// state may also move to StateError.
var transitions = map[State][]State{
	StateInit:              {StateDocumentIngest},
	StateDocumentIngest:    {StateStructureAnalysis},
	StateStructureAnalysis: {StatePlanning},
	StatePlanning:          {StateExtraction},
	StateExtraction:        {StateValidation},
	StateValidation:        {StateRepair, StateFinalize},
	StateRepair:            {StateValidation},
	StateFinalize:          {StateDone},
	StateError:             {StateDone},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	if to == StateError {
		return from != StateError && from != StateDone
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
