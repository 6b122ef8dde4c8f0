// Package amount handles the money text field: what the user may type and
// how it becomes a decimal.
package amount

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var pattern = regexp.MustCompile(`^\d*\.?\d*$`)

var (
	ErrInvalid     = errors.New("please enter a valid amount")
	ErrNotPositive = errors.New("amount must be greater than zero")
)

// Valid reports whether s is an acceptable, possibly partial, amount like
// "", "12", "12." or ".5".
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Accept is the keystroke filter: it returns next when it is a valid partial
// amount and prev otherwise.
func Accept(prev, next string) string {
	if Valid(next) {
		return next
	}
	return prev
}

// Parse converts a completed field into a strictly positive decimal.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || !Valid(s) {
		return decimal.Decimal{}, ErrInvalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalid
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, ErrNotPositive
	}
	return d, nil
}
