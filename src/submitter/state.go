package submitter

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
)

// State is the lifecycle of one form.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Busy reports whether the submit control must be disabled.
func (s State) Busy() bool { return s == StateValidating || s == StateSubmitting }

// ErrSubmissionInFlight rejects a submit that arrives while the same form is
// still validating or waiting on the account service.
var ErrSubmissionInFlight = errors.New("a submission for this form is already in progress")

// gate is the form's state word. Every transition is a compare-and-swap so
// concurrent submits of one form race on a single value.
type gate struct {
	v *atomic.Int32
}

func newGate() gate { return gate{v: atomic.NewInt32(int32(StateIdle))} }

func (g gate) Load() State { return State(g.v.Load()) }

// begin moves an idle, succeeded or failed form into Validating.
func (g gate) begin() error {
	for {
		cur := g.Load()
		if cur.Busy() {
			return ErrSubmissionInFlight
		}
		if g.v.CompareAndSwap(int32(cur), int32(StateValidating)) {
			return nil
		}
	}
}

func (g gate) transition(from, to State) bool {
	return g.v.CompareAndSwap(int32(from), int32(to))
}

func (g gate) set(s State) { g.v.Store(int32(s)) }
