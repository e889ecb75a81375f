package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned when no Last.fm account is linked.
var ErrNoSession = errors.New("no last.fm account linked")

// Session is the linked Last.fm account. At most one is stored.
type Session struct {
	Username string
	Key      string
	LinkedAt time.Time
}

// Session returns the linked account or ErrNoSession.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	var (
		s        Session
		linkedAt int64
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT username, session_key, linked_at FROM lastfm_session WHERE id = 1`,
	).Scan(&s.Username, &s.Key, &linkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	s.LinkedAt = time.Unix(linkedAt, 0)
	return s, nil
}

// SaveSession replaces the linked account.
func (m *Manager) SaveSession(ctx context.Context, s Session) error {
	if s.LinkedAt.IsZero() {
		s.LinkedAt = time.Now()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO lastfm_session (id, username, session_key, linked_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			session_key = excluded.session_key,
			linked_at = excluded.linked_at
	`, s.Username, s.Key, s.LinkedAt.Unix())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// DeleteSession unlinks the account. Deleting when nothing is linked is not an error.
func (m *Manager) DeleteSession(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM lastfm_session WHERE id = 1`); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
