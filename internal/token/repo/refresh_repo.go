package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database"
)

// RefreshSession is a persisted refresh token. Only the SHA-256 of the
// opaque token is stored.
type RefreshSession struct {
	ID          string    `db:"id"`
	TokenHash   string    `db:"token_hash"`
	EvaluatorID string    `db:"evaluator_id"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
}

type RefreshRepo struct {
	db *sqlx.DB
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo {
	return &RefreshRepo{db: db}
}

// EnsureTable creates refresh_sessions. Sessions go away with their evaluator.
func (r *RefreshRepo) EnsureTable(ctx context.Context) error {
	d := database.DialectFor(r.db.DriverName())
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS refresh_sessions (
  id varchar(32) PRIMARY KEY,
  token_hash varchar(64) NOT NULL UNIQUE,
  evaluator_id varchar(32) NOT NULL REFERENCES evaluators(id) ON DELETE CASCADE,
  expires_at %[1]s NOT NULL,
  created_at %[1]s NOT NULL
)`, d.Timestamp),
		`CREATE INDEX IF NOT EXISTS idx_refresh_sessions_evaluator ON refresh_sessions (evaluator_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *RefreshRepo) Save(ctx context.Context, s *RefreshSession) error {
	const q = `INSERT INTO refresh_sessions (id, token_hash, evaluator_id, expires_at, created_at)
  VALUES (:id, :token_hash, :evaluator_id, :expires_at, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, s)
	return err
}

// GetByHash returns the session for a token hash or sql.ErrNoRows.
func (r *RefreshRepo) GetByHash(ctx context.Context, hash string) (*RefreshSession, error) {
	var s RefreshSession
	q := r.db.Rebind(`SELECT id, token_hash, evaluator_id, expires_at, created_at FROM refresh_sessions WHERE token_hash=?`)
	if err := r.db.GetContext(ctx, &s, q, hash); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a session and reports whether it existed, so concurrent
// rotations of the same token cannot both succeed.
func (r *RefreshRepo) Delete(ctx context.Context, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM refresh_sessions WHERE token_hash=?`), hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteExpired purges sessions that expired before now.
func (r *RefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM refresh_sessions WHERE expires_at < ?`), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
