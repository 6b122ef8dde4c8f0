package model

import (
	"database/sql"
	"time"
)

// Submission outcomes recorded in the journal.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_failure"
)

// SubmissionEntry is one finished mutating call, as seen by this front-end.
type SubmissionEntry struct {
	ID              int64     `json:"id"`
	CorrelationID   string    `json:"correlation_id"`
	Username        string    `json:"username"`
	Kind            string    `json:"kind"`
	Amount          string    `json:"amount"`
	Counterparty    string    `json:"counterparty,omitempty"`
	Outcome         string    `json:"outcome"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	NewBalance      string    `json:"new_balance,omitempty"`
	Message         string    `json:"message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func InsertSubmission(db *sql.DB, e *SubmissionEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`
	INSERT INTO submissions (correlation_id, username, kind, amount, counterparty, outcome, reference_number, new_balance, message, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CorrelationID, e.Username, e.Kind, e.Amount, e.Counterparty, e.Outcome,
		e.ReferenceNumber, e.NewBalance, e.Message, e.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListSubmissions returns the most recent journal entries for username, newest first.
func ListSubmissions(db *sql.DB, username string, limit int) ([]SubmissionEntry, error) {
	rows, err := db.Query(`
	SELECT id, correlation_id, username, kind, amount, counterparty, outcome, reference_number, new_balance, message, created_at
	FROM submissions
	WHERE username = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?`, username, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []SubmissionEntry
	for rows.Next() {
		var e SubmissionEntry
		var counterparty, ref, bal, msg sql.NullString
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.Username, &e.Kind, &e.Amount,
			&counterparty, &e.Outcome, &ref, &bal, &msg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Counterparty = counterparty.String
		e.ReferenceNumber = ref.String
		e.NewBalance = bal.String
		e.Message = msg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
