package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database"
)

// SubjectRepo provides data access for the subjects table using sqlx.
type SubjectRepo struct {
	db *sqlx.DB
}

func NewSubjectRepo(db *sqlx.DB) *SubjectRepo { return &SubjectRepo{db: db} }

// EnsureTable creates the subjects table if not exists (idempotent).
func (r *SubjectRepo) EnsureTable(ctx context.Context) error {
	d := database.DialectFor(r.db.DriverName())
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS subjects (
  id varchar(32) PRIMARY KEY,
  name TEXT NOT NULL,
  sex varchar(8) NOT NULL,
  birth_date %[1]s,
  height_cm %[2]s,
  created_at %[3]s NOT NULL,
  updated_at %[3]s NOT NULL
)`, d.Date, d.Float, d.Timestamp)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_subjects_name ON subjects (name)`)
	return err
}

const subjectColumns = `id, name, sex, birth_date, height_cm, created_at, updated_at`

// Create inserts a new subject row. The caller assigns ID and timestamps.
func (r *SubjectRepo) Create(ctx context.Context, s *entity.Subject) error {
	q := r.db.Rebind(`INSERT INTO subjects (` + subjectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, s.ID, s.Name, string(s.Sex), s.BirthDate, s.HeightCm, s.CreatedAt, s.UpdatedAt)
	return err
}

// Update overwrites the mutable columns and returns the affected row count.
func (r *SubjectRepo) Update(ctx context.Context, s *entity.Subject) (int64, error) {
	q := r.db.Rebind(`UPDATE subjects SET name=?, sex=?, birth_date=?, height_cm=?, updated_at=? WHERE id=?`)
	res, err := r.db.ExecContext(ctx, q, s.Name, string(s.Sex), s.BirthDate, s.HeightCm, s.UpdatedAt, s.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a subject and its measurements in one transaction. The
// measurements.subject_id ON DELETE CASCADE constraint backs this up for
// deletes issued outside the service.
func (r *SubjectRepo) Delete(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM measurements WHERE subject_id=?`), id); err != nil {
		return 0, fmt.Errorf("delete measurements: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM subjects WHERE id=?`), id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// GetByID returns the subject or sql.ErrNoRows.
func (r *SubjectRepo) GetByID(ctx context.Context, id string) (*entity.Subject, error) {
	var s entity.Subject
	q := r.db.Rebind(`SELECT ` + subjectColumns + ` FROM subjects WHERE id=?`)
	if err := r.db.GetContext(ctx, &s, q, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns subjects ordered by name. A non-positive limit returns all rows.
func (r *SubjectRepo) List(ctx context.Context, limit, offset int) ([]*entity.Subject, error) {
	q := `SELECT ` + subjectColumns + ` FROM subjects ORDER BY name, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	out := []*entity.Subject{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}
