package model

import (
	"database/sql"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when no live session matches.
var ErrSessionNotFound = errors.New("session not found, expired, or blocked")

type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	UserAgent string    `json:"user_agent"`
	ClientIP  string    `json:"client_ip"`
	IsBlocked bool      `json:"is_blocked"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession inserts a new session into the database.
func CreateSession(db *sql.DB, session *Session) error {
	query := `
	INSERT INTO sessions (id, username, user_agent, client_ip, is_blocked, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err = stmt.Exec(
		session.ID,
		session.Username,
		session.UserAgent,
		session.ClientIP,
		session.IsBlocked,
		session.ExpiresAt.UTC(),
		session.CreatedAt,
	)
	return err
}

// GetSessionByID retrieves an active, non-blocked session.
func GetSessionByID(db *sql.DB, id string) (*Session, error) {
	query := `
	SELECT id, username, user_agent, client_ip, is_blocked, expires_at, created_at
	FROM sessions
	WHERE id = ? AND is_blocked = FALSE AND expires_at > ?`

	row := db.QueryRow(query, id, time.Now().UTC())
	var session Session
	var userAgent, clientIP sql.NullString
	err := row.Scan(
		&session.ID,
		&session.Username,
		&userAgent,
		&clientIP,
		&session.IsBlocked,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	session.UserAgent = userAgent.String
	session.ClientIP = clientIP.String
	return &session, nil
}

// DeleteSessionByID removes a session. Deleting an unknown session is not an
// error; it may already have expired.
func DeleteSessionByID(db *sql.DB, id string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteExpiredSessions purges sessions past their expiry and reports how many went.
func DeleteExpiredSessions(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
