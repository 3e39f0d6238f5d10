package entity

import "time"

// Evaluator is a practitioner account (row in `evaluators`). Evaluators sign
// in to record and review assessments.
type Evaluator struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"` // lower-cased
	Name                string     `db:"name"`
	PasswordHash        string     `db:"password_hash"`
	PasswordAlgo        string     `db:"password_algo"`
	LoginFailedAttempts int        `db:"login_failed_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Locked reports whether the account is locked at the given instant.
func (e *Evaluator) Locked(now time.Time) bool {
	return e.LockedUntil != nil && e.LockedUntil.After(now)
}

// AuthView is the projection used to hydrate token claims.
type AuthView struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
}
