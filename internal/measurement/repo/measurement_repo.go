package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database"
)

// MeasurementRepo provides data access for the measurements table using sqlx.
type MeasurementRepo struct {
	db *sqlx.DB
}

func NewMeasurementRepo(db *sqlx.DB) *MeasurementRepo { return &MeasurementRepo{db: db} }

// EnsureTable creates the measurements table if not exists (idempotent).
// The subjects table must already exist.
func (r *MeasurementRepo) EnsureTable(ctx context.Context) error {
	d := database.DialectFor(r.db.DriverName())
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS measurements (
  id varchar(32) PRIMARY KEY,
  subject_id varchar(32) NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
  assessed_on %[1]s NOT NULL,
  protocol varchar(16) NOT NULL,
  weight_kg %[2]s,
  sf_triceps %[2]s,
  sf_subscapular %[2]s,
  sf_chest %[2]s,
  sf_midaxillary %[2]s,
  sf_abdominal %[2]s,
  sf_suprailiac %[2]s,
  sf_thigh %[2]s,
  circ_biceps_relaxed %[2]s,
  circ_biceps_flexed %[2]s,
  circ_chest %[2]s,
  circ_waist %[2]s,
  circ_abdomen %[2]s,
  circ_hip %[2]s,
  circ_thigh %[2]s,
  circ_calf %[2]s,
  created_at %[3]s NOT NULL,
  updated_at %[3]s NOT NULL
)`, d.Date, d.Float, d.Timestamp)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_measurements_subject_date ON measurements (subject_id, assessed_on)`)
	return err
}

const measurementColumns = `id, subject_id, assessed_on, protocol, weight_kg,
  sf_triceps, sf_subscapular, sf_chest, sf_midaxillary, sf_abdominal, sf_suprailiac, sf_thigh,
  circ_biceps_relaxed, circ_biceps_flexed, circ_chest, circ_waist, circ_abdomen, circ_hip, circ_thigh, circ_calf,
  created_at, updated_at`

// newest first; ties on the same day fall back to insertion order
const newestFirst = ` ORDER BY assessed_on DESC, created_at DESC, id DESC`

// Create inserts a measurement. The caller assigns ID and timestamps.
func (r *MeasurementRepo) Create(ctx context.Context, m *entity.Measurement) error {
	const q = `INSERT INTO measurements (` + measurementColumns + `) VALUES (
  :id, :subject_id, :assessed_on, :protocol, :weight_kg,
  :sf_triceps, :sf_subscapular, :sf_chest, :sf_midaxillary, :sf_abdominal, :sf_suprailiac, :sf_thigh,
  :circ_biceps_relaxed, :circ_biceps_flexed, :circ_chest, :circ_waist, :circ_abdomen, :circ_hip, :circ_thigh, :circ_calf,
  :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, m)
	return err
}

// Update overwrites every mutable column and returns the affected row count.
// The owning subject cannot change.
func (r *MeasurementRepo) Update(ctx context.Context, m *entity.Measurement) (int64, error) {
	const q = `UPDATE measurements SET
  assessed_on=:assessed_on, protocol=:protocol, weight_kg=:weight_kg,
  sf_triceps=:sf_triceps, sf_subscapular=:sf_subscapular, sf_chest=:sf_chest,
  sf_midaxillary=:sf_midaxillary, sf_abdominal=:sf_abdominal, sf_suprailiac=:sf_suprailiac, sf_thigh=:sf_thigh,
  circ_biceps_relaxed=:circ_biceps_relaxed, circ_biceps_flexed=:circ_biceps_flexed, circ_chest=:circ_chest,
  circ_waist=:circ_waist, circ_abdomen=:circ_abdomen, circ_hip=:circ_hip, circ_thigh=:circ_thigh, circ_calf=:circ_calf,
  updated_at=:updated_at
WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, m)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MeasurementRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM measurements WHERE id=?`), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByID returns the measurement or sql.ErrNoRows.
func (r *MeasurementRepo) GetByID(ctx context.Context, id string) (*entity.Measurement, error) {
	var m entity.Measurement
	q := r.db.Rebind(`SELECT ` + measurementColumns + ` FROM measurements WHERE id=?`)
	if err := r.db.GetContext(ctx, &m, q, id); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListBySubject returns the measurements of one subject, newest first.
func (r *MeasurementRepo) ListBySubject(ctx context.Context, subjectID string) ([]*entity.Measurement, error) {
	out := []*entity.Measurement{}
	q := r.db.Rebind(`SELECT ` + measurementColumns + ` FROM measurements WHERE subject_id=?` + newestFirst)
	if err := r.db.SelectContext(ctx, &out, q, subjectID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every measurement, newest first.
func (r *MeasurementRepo) ListAll(ctx context.Context) ([]*entity.Measurement, error) {
	out := []*entity.Measurement{}
	if err := r.db.SelectContext(ctx, &out, `SELECT `+measurementColumns+` FROM measurements`+newestFirst); err != nil {
		return nil, err
	}
	return out, nil
}

// Previous returns the most recent measurement of the subject assessed
// strictly before the given day, or nil when there is none.
func (r *MeasurementRepo) Previous(ctx context.Context, subjectID string, before time.Time) (*entity.Measurement, error) {
	q := r.db.Rebind(`SELECT ` + measurementColumns + ` FROM measurements WHERE subject_id=? AND assessed_on < ?` + newestFirst + ` LIMIT 1`)
	return r.one(ctx, q, subjectID, before)
}

// Latest returns the newest measurement of the subject, or nil.
func (r *MeasurementRepo) Latest(ctx context.Context, subjectID string) (*entity.Measurement, error) {
	q := r.db.Rebind(`SELECT ` + measurementColumns + ` FROM measurements WHERE subject_id=?` + newestFirst + ` LIMIT 1`)
	return r.one(ctx, q, subjectID)
}

// First returns the oldest measurement of the subject, or nil.
func (r *MeasurementRepo) First(ctx context.Context, subjectID string) (*entity.Measurement, error) {
	q := r.db.Rebind(`SELECT ` + measurementColumns + ` FROM measurements WHERE subject_id=?
ORDER BY assessed_on ASC, created_at ASC, id ASC LIMIT 1`)
	return r.one(ctx, q, subjectID)
}

func (r *MeasurementRepo) one(ctx context.Context, q string, args ...any) (*entity.Measurement, error) {
	var m entity.Measurement
	if err := r.db.GetContext(ctx, &m, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
