package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database"
)

// EvaluatorRepo provides data access for the evaluators table using sqlx.
type EvaluatorRepo struct {
	db *sqlx.DB
}

func NewEvaluatorRepo(db *sqlx.DB) *EvaluatorRepo { return &EvaluatorRepo{db: db} }

// EnsureTable creates the evaluators table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *EvaluatorRepo) EnsureTable(ctx context.Context) error {
	d := database.DialectFor(r.db.DriverName())
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS evaluators (
  id varchar(32) PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  password_algo TEXT NOT NULL,
  login_failed_attempts INT NOT NULL DEFAULT 0,
  locked_until %[1]s,
  last_login_at %[1]s,
  created_at %[1]s NOT NULL,
  updated_at %[1]s NOT NULL
)`, d.Timestamp)
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const evaluatorColumns = `id, email, name, password_hash, password_algo, login_failed_attempts,
  locked_until, last_login_at, created_at, updated_at`

// Create inserts a new evaluator row. The caller assigns ID and timestamps.
func (r *EvaluatorRepo) Create(ctx context.Context, e *entity.Evaluator) error {
	const q = `INSERT INTO evaluators (` + evaluatorColumns + `)
  VALUES (:id, :email, :name, :password_hash, :password_algo, :login_failed_attempts,
  :locked_until, :last_login_at, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, e)
	return err
}

// GetByEmail returns the evaluator with the given (lower-cased) email or sql.ErrNoRows.
func (r *EvaluatorRepo) GetByEmail(ctx context.Context, email string) (*entity.Evaluator, error) {
	var e entity.Evaluator
	q := r.db.Rebind(`SELECT ` + evaluatorColumns + ` FROM evaluators WHERE email=?`)
	if err := r.db.GetContext(ctx, &e, q, email); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetAuthView returns only the fields needed for token claim hydration.
func (r *EvaluatorRepo) GetAuthView(ctx context.Context, id string) (*entity.AuthView, error) {
	var v entity.AuthView
	if err := r.db.GetContext(ctx, &v, r.db.Rebind(`SELECT id, email, name FROM evaluators WHERE id=?`), id); err != nil {
		return nil, err
	}
	return &v, nil
}

// IncrementFailedLogin increments the failure counter and returns the new value.
func (r *EvaluatorRepo) IncrementFailedLogin(ctx context.Context, id string, now time.Time) (int, error) {
	q := r.db.Rebind(`UPDATE evaluators SET login_failed_attempts = login_failed_attempts + 1, updated_at=?
  WHERE id=? RETURNING login_failed_attempts`)
	var v int
	if err := r.db.GetContext(ctx, &v, q, now, id); err != nil {
		return 0, err
	}
	return v, nil
}

// LockIfThreshold locks the evaluator until the given instant once the
// failure counter reaches threshold.
func (r *EvaluatorRepo) LockIfThreshold(ctx context.Context, id string, threshold int, until, now time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE evaluators SET locked_until=?, updated_at=?
  WHERE id=? AND login_failed_attempts >= ?`)
	res, err := r.db.ExecContext(ctx, q, until, now, id, threshold)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UnlockIfExpired clears a lock that has run out and restarts the failure count.
func (r *EvaluatorRepo) UnlockIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE evaluators SET locked_until=NULL, login_failed_attempts=0, updated_at=?
  WHERE id=? AND locked_until IS NOT NULL AND locked_until <= ?`)
	res, err := r.db.ExecContext(ctx, q, now, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ResetLoginSuccess resets failure metrics on successful authentication.
func (r *EvaluatorRepo) ResetLoginSuccess(ctx context.Context, id string, now time.Time) error {
	q := r.db.Rebind(`UPDATE evaluators SET login_failed_attempts=0, last_login_at=?, locked_until=NULL, updated_at=? WHERE id=?`)
	_, err := r.db.ExecContext(ctx, q, now, now, id)
	return err
}
