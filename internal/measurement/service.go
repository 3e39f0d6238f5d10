package measurement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/composition"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject"
	subjectentity "github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

var (
	ErrNotFound        = errors.New("measurement not found")
	ErrInvalid         = errors.New("invalid measurement")
	ErrSubjectNotFound = errors.New("subject not found")
)

// SubjectLookup is the part of the subject service measurements depend on.
type SubjectLookup interface {
	Get(ctx context.Context, id string) (*subjectentity.Subject, error)
	List(ctx context.Context, limit, offset int) ([]*subjectentity.Subject, error)
}

// ResultRecorder observes every computed result.
type ResultRecorder interface {
	ObserveResult(r composition.Result)
}

type nopRecorder struct{}

func (nopRecorder) ObserveResult(composition.Result) {}

// Service owns measurement lifecycle and the derived result views.
type Service struct {
	repo     *repo.MeasurementRepo
	subjects SubjectLookup
	clock    clockwork.Clock
	recorder ResultRecorder
}

// NewService wires the service. A nil clock uses the real clock and a nil
// recorder discards observations.
func NewService(r *repo.MeasurementRepo, subjects SubjectLookup, clock clockwork.Clock, rec ResultRecorder) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{repo: r, subjects: subjects, clock: clock, recorder: rec}
}

// Assessment is a stored measurement together with its derived result.
type Assessment struct {
	Measurement *entity.Measurement
	Subject     *subjectentity.Subject
	Result      composition.Result
	Comparison  *Comparison
}

// Comparison holds the change from an earlier assessment (current minus
// earlier). A delta is nil when either side lacks the value.
type Comparison struct {
	MeasurementID  string
	AssessedOn     time.Time
	BodyFatPercent *float64
	WeightKg       *float64
	LeanMassKg     *float64
	FatMassKg      *float64
}

// Progress compares the first and the latest assessment of a subject.
type Progress struct {
	Subject *subjectentity.Subject
	First   *Assessment
	Latest  *Assessment
	Change  *Comparison
}

// OverviewEntry is one subject with its most recent assessment.
type OverviewEntry struct {
	Subject *subjectentity.Subject
	Latest  *Assessment
}

func (s *Service) subject(ctx context.Context, id string) (*subjectentity.Subject, error) {
	sub, err := s.subjects.Get(ctx, id)
	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, id)
		}
		return nil, err
	}
	return sub, nil
}

func (s *Service) validate(m *entity.Measurement) error {
	if !m.Protocol.Valid() {
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalid, m.Protocol)
	}
	if m.AssessedOn.IsZero() {
		return fmt.Errorf("%w: assessment date is required", ErrInvalid)
	}
	if m.WeightKg != nil && *m.WeightKg <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalid)
	}
	for _, v := range []*float64{m.Triceps, m.Subscapular, m.Chest, m.Midaxillary, m.Abdominal, m.Suprailiac, m.Thigh,
		m.BicepsRelaxed, m.BicepsFlexed, m.ChestCirc, m.Waist, m.Abdomen, m.Hip, m.ThighCirc, m.Calf} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: measurements cannot be negative", ErrInvalid)
		}
	}
	m.AssessedOn = utilities.DateOnly(m.AssessedOn)
	return nil
}

// Create stores a new measurement for an existing subject.
func (s *Service) Create(ctx context.Context, m *entity.Measurement) (*entity.Measurement, error) {
	if _, err := s.subject(ctx, m.SubjectID); err != nil {
		return nil, err
	}
	if err := s.validate(m); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	m.ID = utilities.NewSnowflakeID()
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Update replaces the values of an existing measurement. It stays attached to
// its original subject.
func (s *Service) Update(ctx context.Context, m *entity.Measurement) (*entity.Measurement, error) {
	existing, err := s.Get(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(m); err != nil {
		return nil, err
	}
	m.SubjectID = existing.SubjectID
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = s.clock.Now().UTC()
	rows, err := s.repo.Update(ctx, m)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return m, nil
}

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

func (s *Service) Get(ctx context.Context, id string) (*entity.Measurement, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListBySubject returns the raw measurements of a subject, newest first.
func (s *Service) ListBySubject(ctx context.Context, subjectID string) ([]*entity.Measurement, error) {
	if _, err := s.subject(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.repo.ListBySubject(ctx, subjectID)
}

// ListAll returns every measurement, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*entity.Measurement, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) compute(m composition.Measurement, sub composition.Subject, on *time.Time) composition.Result {
	day := utilities.DateOnly(s.clock.Now())
	if on != nil {
		day = utilities.DateOnly(*on)
	}
	return composition.Compute(m, sub, day)
}

// Evaluate runs the engine on unsaved inputs and records the result. A nil
// date means today.
func (s *Service) Evaluate(m composition.Measurement, sub composition.Subject, on *time.Time) composition.Result {
	r := s.compute(m, sub, on)
	s.recorder.ObserveResult(r)
	return r
}

// assess computes without recording; listings and comparisons re-derive
// results on every read.
func (s *Service) assess(m *entity.Measurement, sub *subjectentity.Subject) *Assessment {
	return &Assessment{Measurement: m, Subject: sub, Result: s.compute(m.Input(), sub.Attributes(), nil)}
}

// Result computes the body composition of one measurement and compares it
// with the subject's previous assessment when there is one.
func (s *Service) Result(ctx context.Context, id string) (*Assessment, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := s.subject(ctx, m.SubjectID)
	if err != nil {
		return nil, err
	}
	a := s.assess(m, sub)
	s.recorder.ObserveResult(a.Result)
	prev, err := s.repo.Previous(ctx, m.SubjectID, m.AssessedOn)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		a.Comparison = compare(a, s.assess(prev, sub))
	}
	return a, nil
}

// History returns every assessment of a subject, newest first. Each entry is
// compared with the one that follows it.
func (s *Service) History(ctx context.Context, subjectID string) ([]*Assessment, error) {
	sub, err := s.subject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := make([]*Assessment, 0, len(list))
	for _, m := range list {
		out = append(out, s.assess(m, sub))
	}
	for i := 0; i+1 < len(out); i++ {
		// only strictly earlier days count as a previous assessment
		for j := i + 1; j < len(out); j++ {
			if out[j].Measurement.AssessedOn.Before(out[i].Measurement.AssessedOn) {
				out[i].Comparison = compare(out[i], out[j])
				break
			}
		}
	}
	return out, nil
}

// Timeline returns the assessments of every subject, newest first.
func (s *Service) Timeline(ctx context.Context) ([]*Assessment, error) {
	subjects, err := s.subjectIndex(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Assessment, 0, len(list))
	for _, m := range list {
		sub, ok := subjects[m.SubjectID]
		if !ok {
			continue
		}
		out = append(out, s.assess(m, sub))
	}
	return out, nil
}

// Overview lists every subject with its latest assessment, if any.
func (s *Service) Overview(ctx context.Context) ([]OverviewEntry, error) {
	subjects, err := s.subjects.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	// ListAll is newest first, so the first row per subject is its latest
	latest := make(map[string]*entity.Measurement, len(subjects))
	for _, m := range list {
		if _, seen := latest[m.SubjectID]; !seen {
			latest[m.SubjectID] = m
		}
	}
	out := make([]OverviewEntry, 0, len(subjects))
	for _, sub := range subjects {
		e := OverviewEntry{Subject: sub}
		if m, ok := latest[sub.ID]; ok {
			e.Latest = s.assess(m, sub)
		}
		out = append(out, e)
	}
	return out, nil
}

// Progress reports the change between the first and the latest assessment.
// Change is nil until the subject has assessments on two distinct days.
func (s *Service) Progress(ctx context.Context, subjectID string) (*Progress, error) {
	sub, err := s.subject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	p := &Progress{Subject: sub}
	first, err := s.repo.First(ctx, subjectID)
	if err != nil || first == nil {
		return p, err
	}
	latest, err := s.repo.Latest(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	p.First = s.assess(first, sub)
	p.Latest = s.assess(latest, sub)
	if latest.AssessedOn.After(first.AssessedOn) {
		p.Change = compare(p.Latest, p.First)
	}
	return p, nil
}

func (s *Service) subjectIndex(ctx context.Context) (map[string]*subjectentity.Subject, error) {
	list, err := s.subjects.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]*subjectentity.Subject, len(list))
	for _, sub := range list {
		idx[sub.ID] = sub
	}
	return idx, nil
}

func compare(cur, earlier *Assessment) *Comparison {
	return &Comparison{
		MeasurementID:  earlier.Measurement.ID,
		AssessedOn:     earlier.Measurement.AssessedOn,
		BodyFatPercent: delta(cur.Result.BodyFatPercent, earlier.Result.BodyFatPercent),
		WeightKg:       delta(cur.Measurement.WeightKg, earlier.Measurement.WeightKg),
		LeanMassKg:     delta(cur.Result.LeanMassKg, earlier.Result.LeanMassKg),
		FatMassKg:      delta(cur.Result.FatMassKg, earlier.Result.FatMassKg),
	}
}

func delta(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := *a - *b
	return &d
}
