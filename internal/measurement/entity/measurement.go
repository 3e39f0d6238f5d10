package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/composition"
)

// Measurement is one anthropometric assessment of a subject (row in `measurements`).
// Skinfolds are in millimetres, circumferences in centimetres.
type Measurement struct {
	ID         string               `db:"id"`
	SubjectID  string               `db:"subject_id"`
	AssessedOn time.Time            `db:"assessed_on"` // calendar day, UTC midnight
	Protocol   composition.Protocol `db:"protocol"`
	WeightKg   *float64             `db:"weight_kg"`

	Triceps     *float64 `db:"sf_triceps"`
	Subscapular *float64 `db:"sf_subscapular"`
	Chest       *float64 `db:"sf_chest"`
	Midaxillary *float64 `db:"sf_midaxillary"`
	Abdominal   *float64 `db:"sf_abdominal"`
	Suprailiac  *float64 `db:"sf_suprailiac"`
	Thigh       *float64 `db:"sf_thigh"`

	BicepsRelaxed *float64 `db:"circ_biceps_relaxed"`
	BicepsFlexed  *float64 `db:"circ_biceps_flexed"`
	ChestCirc     *float64 `db:"circ_chest"`
	Waist         *float64 `db:"circ_waist"`
	Abdomen       *float64 `db:"circ_abdomen"`
	Hip           *float64 `db:"circ_hip"`
	ThighCirc     *float64 `db:"circ_thigh"`
	Calf          *float64 `db:"circ_calf"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Input returns the engine view of the measurement.
func (m *Measurement) Input() composition.Measurement {
	return composition.Measurement{
		Protocol:       m.Protocol,
		WeightKg:       m.WeightKg,
		Skinfolds:      m.Skinfolds(),
		Circumferences: m.Circumferences(),
	}
}

func (m *Measurement) Skinfolds() composition.Skinfolds {
	return composition.Skinfolds{
		Triceps:     m.Triceps,
		Subscapular: m.Subscapular,
		Chest:       m.Chest,
		Midaxillary: m.Midaxillary,
		Abdominal:   m.Abdominal,
		Suprailiac:  m.Suprailiac,
		Thigh:       m.Thigh,
	}
}

func (m *Measurement) Circumferences() composition.Circumferences {
	return composition.Circumferences{
		BicepsRelaxed: m.BicepsRelaxed,
		BicepsFlexed:  m.BicepsFlexed,
		Chest:         m.ChestCirc,
		Waist:         m.Waist,
		Abdomen:       m.Abdomen,
		Hip:           m.Hip,
		Thigh:         m.ThighCirc,
		Calf:          m.Calf,
	}
}

// SetSkinfolds copies every site from sf, including absent ones.
func (m *Measurement) SetSkinfolds(sf composition.Skinfolds) {
	m.Triceps = sf.Triceps
	m.Subscapular = sf.Subscapular
	m.Chest = sf.Chest
	m.Midaxillary = sf.Midaxillary
	m.Abdominal = sf.Abdominal
	m.Suprailiac = sf.Suprailiac
	m.Thigh = sf.Thigh
}

// SetCircumferences copies every girth from c, including absent ones.
func (m *Measurement) SetCircumferences(c composition.Circumferences) {
	m.BicepsRelaxed = c.BicepsRelaxed
	m.BicepsFlexed = c.BicepsFlexed
	m.ChestCirc = c.Chest
	m.Waist = c.Waist
	m.Abdomen = c.Abdomen
	m.Hip = c.Hip
	m.ThighCirc = c.Thigh
	m.Calf = c.Calf
}
