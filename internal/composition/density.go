package composition

import (
	"math"
	"time"
)

// coefficients of D = C0 - C1*S + C2*S² - C3*A for one protocol and sex.
type coefficients struct {
	c0, c1, c2, c3 float64
}

type formulaKey struct {
	protocol Protocol
	sex      Sex
}

// Jackson–Pollock regressions.
var densityFormulas = map[formulaKey]coefficients{
	{ThreeSite, Male}:   {1.10938, 0.0008267, 0.0000016, 0.0002574},
	{ThreeSite, Female}: {1.0994921, 0.0009929, 0.0000023, 0.0001392},
	{SevenSite, Male}:   {1.112, 0.00043499, 0.00000055, 0.00028826},
	{SevenSite, Female}: {1.097, 0.00046971, 0.00000056, 0.00012828},
}

// AgeAt returns the number of whole years elapsed between birthDate and on.
// It reports false when the birth date is unknown or lies after on.
func AgeAt(birthDate *time.Time, on time.Time) (int, bool) {
	if birthDate == nil {
		return 0, false
	}
	by, bm, bd := birthDate.Date()
	oy, om, od := on.Date()
	age := oy - by
	if om < bm || (om == bm && od < bd) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// requiredSites lists the skinfold values a protocol needs for the given sex.
func requiredSites(m Measurement, sex Sex) ([]*float64, bool) {
	sf := m.Skinfolds
	switch m.Protocol {
	case ThreeSite:
		switch sex {
		case Male:
			return []*float64{sf.Chest, sf.Abdominal, sf.Thigh}, true
		case Female:
			return []*float64{sf.Triceps, sf.Suprailiac, sf.Thigh}, true
		}
	case SevenSite:
		return []*float64{sf.Chest, sf.Abdominal, sf.Triceps, sf.Suprailiac, sf.Thigh, sf.Subscapular, sf.Midaxillary}, true
	}
	return nil, false
}

// SkinfoldSum adds the sites required by the measurement's protocol. The sum
// exists only when every required site was measured.
func SkinfoldSum(m Measurement, sex Sex) (float64, bool) {
	sites, ok := requiredSites(m, sex)
	if !ok {
		return 0, false
	}
	var sum float64
	for _, v := range sites {
		if v == nil {
			return 0, false
		}
		sum += *v
	}
	return sum, true
}

// BodyDensity evaluates the protocol's density regression for the subject's
// age on the evaluation date.
func BodyDensity(m Measurement, s Subject, on time.Time) (float64, bool) {
	c, ok := densityFormulas[formulaKey{m.Protocol, s.Sex}]
	if !ok {
		return 0, false
	}
	sum, ok := SkinfoldSum(m, s.Sex)
	if !ok {
		return 0, false
	}
	age, ok := AgeAt(s.BirthDate, on)
	if !ok {
		return 0, false
	}
	a := float64(age)
	return c.c0 - c.c1*sum + c.c2*sum*sum - c.c3*a, true
}

// BodyFatPercent converts body density to fat percentage with the Siri
// equation. It returns nil when density cannot be computed or is not a
// positive finite number.
func BodyFatPercent(m Measurement, s Subject, on time.Time) *float64 {
	d, ok := BodyDensity(m, s, on)
	if !ok || d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return nil
	}
	bf := 495/d - 450
	return &bf
}
