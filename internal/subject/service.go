package subject

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

// sentinel errors for common failure modes
var (
	ErrNotFound = errors.New("subject not found")
	ErrInvalid  = errors.New("invalid subject")
)

// Service encapsulates business logic for subjects and depends on a repo.
type Service struct {
	repo  *repo.SubjectRepo
	clock clockwork.Clock
}

// NewService constructs a Service. A nil clock uses the real clock.
func NewService(r *repo.SubjectRepo, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: r, clock: clock}
}

func (s *Service) normalize(in *entity.Subject) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !in.Sex.Valid() {
		return fmt.Errorf("%w: unknown sex %q", ErrInvalid, in.Sex)
	}
	if in.HeightCm != nil && *in.HeightCm <= 0 {
		return fmt.Errorf("%w: height must be positive", ErrInvalid)
	}
	if in.BirthDate != nil {
		d := utilities.DateOnly(*in.BirthDate)
		if d.After(s.clock.Now()) {
			return fmt.Errorf("%w: birth date is in the future", ErrInvalid)
		}
		in.BirthDate = &d
	}
	return nil
}

// Create validates and stores a new subject.
func (s *Service) Create(ctx context.Context, in *entity.Subject) (*entity.Subject, error) {
	if err := s.normalize(in); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	in.ID = utilities.NewSnowflakeID()
	in.CreatedAt = now
	in.UpdatedAt = now
	if err := s.repo.Create(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// Update replaces the attributes of an existing subject.
func (s *Service) Update(ctx context.Context, in *entity.Subject) (*entity.Subject, error) {
	existing, err := s.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := s.normalize(in); err != nil {
		return nil, err
	}
	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = s.clock.Now().UTC()
	rows, err := s.repo.Update(ctx, in)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return in, nil
}

// Delete removes a subject together with all of its measurements.
func (s *Service) Delete(ctx context.Context, id string) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a subject by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Subject, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

// List returns subjects ordered by name with optional pagination.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*entity.Subject, error) {
	return s.repo.List(ctx, limit, offset)
}
