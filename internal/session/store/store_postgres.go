package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"regdesk/internal/session"
)

// PostgresStore persists sessions in PostgreSQL. Schema lives in migrations/.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, principal_id, kind, two_factor_verified,
			fingerprint_hash, device_display_name, created_at, last_seen_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sess.ID, sess.PrincipalID, string(sess.Kind), sess.TwoFactorVerified,
		sess.FingerprintHash, sess.DeviceDisplayName, sess.CreatedAt, sess.LastSeenAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, principal_id, kind, two_factor_verified,
			fingerprint_hash, device_display_name, created_at, last_seen_at, expires_at
		FROM sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

func (s *PostgresStore) Update(ctx context.Context, sess *session.Session) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET two_factor_verified = $2, last_seen_at = $3, expires_at = $4
		WHERE id = $1
	`, sess.ID, sess.TwoFactorVerified, sess.LastSeenAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID string) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, principal_id, kind, two_factor_verified,
			fingerprint_hash, device_display_name, created_at, last_seen_at, expires_at
		FROM sessions WHERE principal_id = $1
		ORDER BY last_seen_at DESC
	`, principalID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	sessions := make([]*session.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByPrincipal(ctx context.Context, principalID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE principal_id = $1`, principalID)
	if err != nil {
		return 0, fmt.Errorf("delete principal sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete principal sessions rows: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions rows: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var sess session.Session
	var kind string
	err := row.Scan(&sess.ID, &sess.PrincipalID, &kind, &sess.TwoFactorVerified,
		&sess.FingerprintHash, &sess.DeviceDisplayName, &sess.CreatedAt, &sess.LastSeenAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Kind = session.PrincipalKind(kind)
	return &sess, nil
}

var _ session.Store = (*PostgresStore)(nil)
