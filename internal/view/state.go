package view

import "github.com/evyataryagoni/iptracker/internal/lookup"

// Kind tags which variant of State holds
type Kind int

const (
	Idle Kind = iota
	Loading
	Success
	Error
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// State is the tagged union the page is rendered from
// Result is only set for Success and Message only for Error
type State struct {
	Kind    Kind
	Result  *lookup.Result
	Message string

	// Cycle increases on every submit; CycleID is its log correlation id
	Cycle   uint64
	CycleID string
}

// Busy reports whether the trigger control should be disabled
func (s State) Busy() bool {
	return s.Kind == Loading
}
