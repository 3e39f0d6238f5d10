package composition

import "time"

// Sex selects the regression coefficients and risk bands.
type Sex string

const (
	Male   Sex = "male"
	Female Sex = "female"
)

// Valid reports whether s is one of the known values.
func (s Sex) Valid() bool { return s == Male || s == Female }

// Protocol names the skinfold protocol used for an assessment.
type Protocol string

const (
	ThreeSite Protocol = "three_site"
	SevenSite Protocol = "seven_site"
	Undefined Protocol = "undefined"
)

func (p Protocol) Valid() bool {
	switch p {
	case ThreeSite, SevenSite, Undefined:
		return true
	}
	return false
}

// Skinfolds holds the seven standard skinfold sites in millimetres.
// A nil field means the site was not measured.
type Skinfolds struct {
	Triceps     *float64 `json:"triceps,omitempty"`
	Subscapular *float64 `json:"subscapular,omitempty"`
	Chest       *float64 `json:"chest,omitempty"`
	Midaxillary *float64 `json:"midaxillary,omitempty"`
	Abdominal   *float64 `json:"abdominal,omitempty"`
	Suprailiac  *float64 `json:"suprailiac,omitempty"`
	Thigh       *float64 `json:"thigh,omitempty"`
}

// Circumferences holds girth measurements in centimetres. They are
// recorded for follow-up only and never enter the density regression.
type Circumferences struct {
	BicepsRelaxed *float64 `json:"biceps_relaxed,omitempty"`
	BicepsFlexed  *float64 `json:"biceps_flexed,omitempty"`
	Chest         *float64 `json:"chest,omitempty"`
	Waist         *float64 `json:"waist,omitempty"`
	Abdomen       *float64 `json:"abdomen,omitempty"`
	Hip           *float64 `json:"hip,omitempty"`
	Thigh         *float64 `json:"thigh,omitempty"`
	Calf          *float64 `json:"calf,omitempty"`
}

// Subject is the set of person attributes the engine reads.
type Subject struct {
	Sex       Sex
	BirthDate *time.Time
	HeightCm  *float64
}

// Measurement is one assessment as seen by the engine.
type Measurement struct {
	Protocol       Protocol
	WeightKg       *float64
	Skinfolds      Skinfolds
	Circumferences Circumferences
}

// Result is the derived body composition of one measurement. Every field is
// independently optional: a missing input leaves the dependent fields nil.
type Result struct {
	BodyFatPercent *float64      `json:"body_fat_percent"`
	LeanMassKg     *float64      `json:"lean_mass_kg"`
	FatMassKg      *float64      `json:"fat_mass_kg"`
	BMI            *float64      `json:"bmi"`
	Risk           *RiskCategory `json:"risk_category"`
}

// Float returns a pointer to v. Handy for building optional inputs.
func Float(v float64) *float64 { return &v }
