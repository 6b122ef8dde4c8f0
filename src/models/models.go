package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Identity is the logged-in user's username, the only credential the
// account service knows about.
type Identity string

func (i Identity) String() string { return string(i) }

// IsZero reports whether no identity is present.
func (i Identity) IsZero() bool { return strings.TrimSpace(string(i)) == "" }

// AccountSnapshot is the locally cached copy of the server-authoritative balance.
type AccountSnapshot struct {
	Identity Identity        `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
	AsOf     time.Time       `json:"as_of"` // Time of the fetch or confirmation that produced Balance
}

// Company is a biller accepted by the pay-bills form.
type Company struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"` // e.g. "utility", "telecom", "internet"
}

type Profile struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// FullName joins first and last name for display.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Signup struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	PIN       string `json:"pin"`
}

type Credentials struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}
