package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is both the submission variant and the history record type.
type TransactionKind string

const (
	KindDeposit      TransactionKind = "deposit"
	KindWithdraw     TransactionKind = "withdraw"
	KindSendMoney    TransactionKind = "send_money"
	KindPayBills     TransactionKind = "pay_bills"
	KindReceiveMoney TransactionKind = "receive_money" // History only, never submitted
)

// SubmittableKinds lists the variants a form can submit.
var SubmittableKinds = []TransactionKind{KindDeposit, KindWithdraw, KindSendMoney, KindPayBills}

// Label is the human name used in page titles and the history filter.
func (k TransactionKind) Label() string {
	switch k {
	case KindDeposit:
		return "Deposit"
	case KindWithdraw:
		return "Withdraw"
	case KindSendMoney:
		return "Send Money"
	case KindPayBills:
		return "Pay Bills"
	case KindReceiveMoney:
		return "Receive Money"
	default:
		return string(k)
	}
}

// IsCredit reports whether a record of this kind increases the balance.
func (k TransactionKind) IsCredit() bool {
	return k == KindDeposit || k == KindReceiveMoney
}

// DebitsBalance reports whether submitting this kind is bounded by the balance.
func (k TransactionKind) DebitsBalance() bool {
	return k == KindWithdraw || k == KindSendMoney || k == KindPayBills
}

// ParseKind maps a wire or form value onto a known kind.
func ParseKind(s string) (TransactionKind, error) {
	k := TransactionKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindDeposit, KindWithdraw, KindSendMoney, KindPayBills, KindReceiveMoney:
		return k, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// TransactionRequest is a proposed mutation. Recipient is only meaningful for
// KindSendMoney and Company only for KindPayBills.
type TransactionRequest struct {
	Kind      TransactionKind
	Actor     Identity
	Amount    decimal.Decimal
	Recipient Identity
	Company   string
	Notes     string
}

// Confirmation is the server's answer to a successful mutation.
type Confirmation struct {
	Message       string          `json:"message"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	TransactionID string          `json:"transaction_id"`
}

// TransactionRecord is a read-only history entry assigned by the server.
type TransactionRecord struct {
	ReferenceNumber string          `json:"reference_number"`
	Type            TransactionKind `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Timestamp       time.Time       `json:"-"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	Recipient       string          `json:"recipient,omitempty"`
	Sender          string          `json:"sender,omitempty"`
	Company         string          `json:"company,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// DisplayName renders the record the way the history list titles it.
func (r TransactionRecord) DisplayName() string {
	switch r.Type {
	case KindDeposit:
		return "Deposit"
	case KindWithdraw:
		return "Withdraw"
	case KindPayBills:
		return "Pay Bills - " + orUnknown(r.Company)
	case KindSendMoney:
		return "To " + orUnknown(r.Recipient)
	case KindReceiveMoney:
		return "From " + orUnknown(r.Sender)
	default:
		return string(r.Type)
	}
}

// Matches applies the history filter and the case-insensitive search term.
// An empty kind matches every record.
func (r TransactionRecord) Matches(kind TransactionKind, term string) bool {
	if kind != "" && r.Type != kind {
		return false
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{r.ReferenceNumber, r.Description, r.Recipient, r.Sender, r.Company} {
		if field != "" && strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// FilterRecords returns the records matching kind and term, preserving order.
func FilterRecords(records []TransactionRecord, kind TransactionKind, term string) []TransactionRecord {
	out := make([]TransactionRecord, 0, len(records))
	for _, r := range records {
		if r.Matches(kind, term) {
			out = append(out, r)
		}
	}
	return out
}
