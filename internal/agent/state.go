package agent

import "errors"

// State is where a turn is in the orchestration loop.
type State int

const (
	StateComposing State = iota
	StateAwaitingModel
	StateDispatching
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateComposing:
		return "composing"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

var (
	// ErrUpstreamTimeout means the reasoning service timed out twice in a row.
	ErrUpstreamTimeout = errors.New("agent: reasoning service timed out")
	// ErrUpstream wraps any other reasoning service failure.
	ErrUpstream = errors.New("agent: reasoning service failed")
	// ErrBudgetExhausted means the model kept calling tools past the round-trip budget.
	ErrBudgetExhausted = errors.New("agent: tool round-trip budget exhausted")
	// ErrEmptyReply means the model finished without any text.
	ErrEmptyReply = errors.New("agent: reasoning service returned an empty reply")
)

// FallbackReply is sent whenever a turn aborts.
const FallbackReply = "I'm sorry, I'm having trouble completing that right now. Please try again in a moment or call the clinic and we'll be happy to help."
