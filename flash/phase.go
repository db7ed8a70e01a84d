package flash

import "fmt"

// Phase is a state of the flash session.
type Phase string

// Session phases.
const (
	PhaseIdle            Phase = "idle"
	PhaseLocating        Phase = "locating"
	PhasePolling         Phase = "polling"
	PhaseWaitingForReset Phase = "waiting_for_reset"
	PhaseUploading       Phase = "uploading"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
)

// transitions lists the legal successor phases.
var transitions = map[Phase][]Phase{
	PhaseIdle:            {PhaseLocating, PhaseFailed},
	PhaseLocating:        {PhaseWaitingForReset, PhasePolling, PhaseFailed},
	PhasePolling:         {PhaseLocating, PhaseFailed},
	PhaseWaitingForReset: {PhaseUploading, PhaseFailed},
	PhaseUploading:       {PhaseDone, PhaseFailed},
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func mustTransition(from, to Phase) {
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("flash: illegal transition %s → %s", from, to))
	}
}
