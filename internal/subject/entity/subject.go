package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/composition"
)

// Subject is a person whose body composition is assessed (row in `subjects`).
type Subject struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Sex       composition.Sex `db:"sex"`
	BirthDate *time.Time      `db:"birth_date"` // calendar day, UTC midnight
	HeightCm  *float64        `db:"height_cm"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Attributes returns the view of the subject used by the calculation engine.
func (s *Subject) Attributes() composition.Subject {
	return composition.Subject{Sex: s.Sex, BirthDate: s.BirthDate, HeightCm: s.HeightCm}
}
