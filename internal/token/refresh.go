package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/token/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

// Sessions hands out opaque refresh tokens and rotates them on use.
type Sessions struct {
	repo  *repo.RefreshRepo
	ttl   time.Duration
	clock clockwork.Clock
}

func NewSessions(r *repo.RefreshRepo, ttl time.Duration, clock clockwork.Clock) *Sessions {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Sessions{repo: r, ttl: ttl, clock: clock}
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Open creates a refresh session for the evaluator.
func (s *Sessions) Open(ctx context.Context, evaluatorID string) (string, time.Time, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	raw := base64.RawURLEncoding.EncodeToString(b)
	now := s.clock.Now()
	rs := &repo.RefreshSession{
		ID:          utilities.NewSnowflakeID(),
		TokenHash:   hashToken(raw),
		EvaluatorID: evaluatorID,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	if err := s.repo.Save(ctx, rs); err != nil {
		return "", time.Time{}, err
	}
	return raw, rs.ExpiresAt, nil
}

// Rotate consumes a refresh token and opens a replacement for the same
// evaluator. Unknown, expired or already used tokens yield ErrInvalidToken.
func (s *Sessions) Rotate(ctx context.Context, raw string) (evaluatorID, next string, expiresAt time.Time, err error) {
	hash := hashToken(raw)
	rs, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", time.Time{}, ErrInvalidToken
		}
		return "", "", time.Time{}, err
	}
	deleted, err := s.repo.Delete(ctx, hash)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if !deleted || !s.clock.Now().Before(rs.ExpiresAt) {
		return "", "", time.Time{}, ErrInvalidToken
	}
	next, expiresAt, err = s.Open(ctx, rs.EvaluatorID)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return rs.EvaluatorID, next, expiresAt, nil
}

// Revoke drops a refresh token. Unknown tokens are not an error.
func (s *Sessions) Revoke(ctx context.Context, raw string) error {
	_, err := s.repo.Delete(ctx, hashToken(raw))
	return err
}

// Purge removes expired sessions.
func (s *Sessions) Purge(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}
