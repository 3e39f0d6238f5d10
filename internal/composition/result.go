package composition

import (
	"math"
	"time"
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// BMI returns weight / height² using the subject's stored height. Results
// that overflow or come from non-finite inputs are absent.
func BMI(s Subject, m Measurement) *float64 {
	if m.WeightKg == nil || s.HeightCm == nil || *s.HeightCm <= 0 {
		return nil
	}
	h := *s.HeightCm / 100
	bmi := *m.WeightKg / (h * h)
	if !finite(bmi) {
		return nil
	}
	return &bmi
}

// Compute derives the full body composition of m for subject s as of the
// evaluation date on. Inputs are not modified.
func Compute(m Measurement, s Subject, on time.Time) Result {
	r := Result{
		BodyFatPercent: BodyFatPercent(m, s, on),
		BMI:            BMI(s, m),
	}
	if r.BodyFatPercent != nil && m.WeightKg != nil {
		fat := *m.WeightKg * *r.BodyFatPercent / 100
		lean := *m.WeightKg - fat
		// fat and lean are reported together or not at all
		if finite(fat) && finite(lean) {
			r.FatMassKg = &fat
			r.LeanMassKg = &lean
		}
	}
	r.Risk = ClassifyRisk(r.BodyFatPercent, s.Sex)
	return r
}
