// Package recipient checks send-money recipients as the user types. Every
// keystroke bumps a generation counter; a lookup only runs after a quiet
// period and only the latest generation may change the indicator.
package recipient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
)

// ErrSuperseded is returned to a Trigger whose input was replaced before its
// result could be applied.
var ErrSuperseded = errors.New("recipient check superseded by newer input")

const DefaultDebounce = 500 * time.Millisecond

const (
	MsgFound    = "Recipient found"
	MsgNotFound = "User not found"
	MsgSelf     = "Cannot send money to yourself"
	MsgError    = "Error validating recipient"
	MsgChecking = "Validating..."
)

type Status int

const (
	StatusEmpty Status = iota
	StatusChecking
	StatusFound
	StatusNotFound
	StatusSelf
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusSelf:
		return "self"
	case StatusError:
		return "error"
	default:
		return "empty"
	}
}

// Indicator is what the form shows next to the recipient field.
type Indicator struct {
	Input      string `json:"input"`
	Status     Status `json:"-"`
	State      string `json:"status"`
	Message    string `json:"message"`
	Generation uint64 `json:"generation"`
}

// Valid reports whether the indicator positively resolved its input.
func (i Indicator) Valid() bool { return i.Status == StatusFound }

func indicator(input string, status Status, msg string, gen uint64) Indicator {
	return Indicator{Input: input, Status: status, State: status.String(), Message: msg, Generation: gen}
}

// Lookup answers whether a username exists. A false result with nil error is
// a definite "no".
type Lookup interface {
	RecipientExists(ctx context.Context, identity models.Identity) (bool, error)
}

type Validator struct {
	self     models.Identity
	lookup   Lookup
	debounce time.Duration

	gen    *atomic.Uint64
	mu     sync.Mutex
	cancel context.CancelFunc
	state  Indicator
}

type Option func(*Validator)

func WithDebounce(d time.Duration) Option {
	return func(v *Validator) {
		if d >= 0 {
			v.debounce = d
		}
	}
}

// New returns a validator for sessions owned by self.
func New(self models.Identity, lookup Lookup, opts ...Option) *Validator {
	v := &Validator{
		self:     self,
		lookup:   lookup,
		debounce: DefaultDebounce,
		gen:      atomic.NewUint64(0),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Current returns the indicator as last applied.
func (v *Validator) Current() Indicator {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Resolved reports whether input is the value the indicator positively
// resolved, which is the precondition for submitting a transfer to it.
func (v *Validator) Resolved(input string) bool {
	cur := v.Current()
	return cur.Valid() && cur.Input == strings.TrimSpace(input)
}

// Reset clears the indicator and abandons any outstanding check.
func (v *Validator) Reset() {
	g := v.gen.Inc()
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.state = indicator("", StatusEmpty, "", g)
}

// Trigger records a new value of the recipient field and blocks until its
// check finishes. Inputs that need no lookup resolve immediately. If another
// Trigger arrives first, the outstanding lookup is cancelled and this call
// returns ErrSuperseded.
func (v *Validator) Trigger(ctx context.Context, input string) (Indicator, error) {
	input = strings.TrimSpace(input)
	g := v.gen.Inc()

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	switch {
	case input == "":
		v.state = indicator("", StatusEmpty, "", g)
		v.mu.Unlock()
		return v.state, nil
	case input == v.self.String():
		v.state = indicator(input, StatusSelf, MsgSelf, g)
		st := v.state
		v.mu.Unlock()
		return st, nil
	}
	lctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.state = indicator(input, StatusChecking, MsgChecking, g)
	v.mu.Unlock()
	defer cancel()

	if v.debounce > 0 {
		timer := time.NewTimer(v.debounce)
		select {
		case <-timer.C:
		case <-lctx.Done():
			timer.Stop()
			return v.abandon(ctx, g)
		}
	}
	if v.gen.Load() != g {
		return Indicator{}, ErrSuperseded
	}

	exists, err := v.lookup.RecipientExists(lctx, models.Identity(input))

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen.Load() != g {
		return Indicator{}, ErrSuperseded
	}
	if ctx.Err() != nil {
		return Indicator{}, ctx.Err()
	}
	switch {
	case err != nil:
		logger.FromContext(ctx).Warn("Recipient lookup failed", "recipient", input, "error", err)
		v.state = indicator(input, StatusError, MsgError, g)
	case exists:
		v.state = indicator(input, StatusFound, MsgFound, g)
	default:
		v.state = indicator(input, StatusNotFound, MsgNotFound, g)
	}
	v.cancel = nil
	return v.state, nil
}

func (v *Validator) abandon(ctx context.Context, g uint64) (Indicator, error) {
	if v.gen.Load() != g {
		return Indicator{}, ErrSuperseded
	}
	return Indicator{}, ctx.Err()
}
