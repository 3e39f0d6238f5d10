package evaluator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrNotFound       = errors.New("evaluator not found")
	ErrLocked         = errors.New("evaluator locked")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalid        = errors.New("invalid evaluator")
)

// Service orchestrates evaluator signup and password authentication.
type Service struct {
	repo   *repo.EvaluatorRepo
	hasher PasswordHasher
	clock  clockwork.Clock
	// configuration knobs
	MaxFailed int
	LockFor   time.Duration
}

func NewService(r *repo.EvaluatorRepo, hasher PasswordHasher, clock clockwork.Clock) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: r, hasher: hasher, clock: clock, MaxFailed: 6, LockFor: 15 * time.Minute}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Signup registers an evaluator and returns its auth view.
func (s *Service) Signup(ctx context.Context, email, name, password string) (*entity.AuthView, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return nil, fmt.Errorf("%w: email, name and password are required", ErrInvalid)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	e := &entity.Evaluator{
		ID:           utilities.NewSnowflakeID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		PasswordAlgo: algo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return &entity.AuthView{ID: e.ID, Email: e.Email, Name: e.Name}, nil
}

// Authenticate performs password authentication by email. Unknown emails and
// wrong passwords both yield ErrBadCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.AuthView, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrBadCredentials
	}
	e, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	now := s.clock.Now().UTC()

	// Expired lock auto-unlock attempt
	if e.LockedUntil != nil && !e.Locked(now) {
		if _, err := s.repo.UnlockIfExpired(ctx, e.ID, now); err != nil {
			return nil, err
		}
		e.LockedUntil = nil
	}
	if e.Locked(now) {
		return nil, ErrLocked
	}

	if !s.hasher.Verify(e.PasswordHash, password) {
		if _, incErr := s.repo.IncrementFailedLogin(ctx, e.ID, now); incErr == nil {
			_, _ = s.repo.LockIfThreshold(ctx, e.ID, s.MaxFailed, now.Add(s.LockFor), now)
		}
		return nil, ErrBadCredentials
	}

	if err := s.repo.ResetLoginSuccess(ctx, e.ID, now); err != nil {
		return nil, err
	}
	return &entity.AuthView{ID: e.ID, Email: e.Email, Name: e.Name}, nil
}

// Get returns the auth view of an evaluator.
func (s *Service) Get(ctx context.Context, id string) (*entity.AuthView, error) {
	v, err := s.repo.GetAuthView(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}
