package composition

import (
	"math"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func birth(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got %.7f want %.7f (tol %g)", name, got, want, tol)
	}
}

func TestAgeAt(t *testing.T) {
	on := date(2024, time.June, 15)
	cases := []struct {
		name  string
		birth *time.Time
		want  int
		ok    bool
	}{
		{"birthday today", birth(1994, time.June, 15), 30, true},
		{"birthday tomorrow", birth(1994, time.June, 16), 29, true},
		{"birthday yesterday", birth(1994, time.June, 14), 30, true},
		{"earlier month", birth(1994, time.January, 31), 30, true},
		{"later month", birth(1994, time.December, 1), 29, true},
		{"born on evaluation day", birth(2024, time.June, 15), 0, true},
		{"born after evaluation", birth(2024, time.June, 16), 0, false},
		{"unknown", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AgeAt(tc.birth, on)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("AgeAt = (%d, %v), want (%d, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

// sitePointers returns addressable slots for every skinfold field so tests
// can toggle arbitrary subsets.
func sitePointers(sf *Skinfolds) map[string]**float64 {
	return map[string]**float64{
		"triceps":     &sf.Triceps,
		"subscapular": &sf.Subscapular,
		"chest":       &sf.Chest,
		"midaxillary": &sf.Midaxillary,
		"abdominal":   &sf.Abdominal,
		"suprailiac":  &sf.Suprailiac,
		"thigh":       &sf.Thigh,
	}
}

func TestSkinfoldSumRequiresEverySite(t *testing.T) {
	cases := []struct {
		protocol Protocol
		sex      Sex
		sites    []string
	}{
		{ThreeSite, Male, []string{"chest", "abdominal", "thigh"}},
		{ThreeSite, Female, []string{"triceps", "suprailiac", "thigh"}},
		{SevenSite, Male, []string{"chest", "abdominal", "triceps", "suprailiac", "thigh", "subscapular", "midaxillary"}},
		{SevenSite, Female, []string{"chest", "abdominal", "triceps", "suprailiac", "thigh", "subscapular", "midaxillary"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.protocol)+"/"+string(tc.sex), func(t *testing.T) {
			n := len(tc.sites)
			for mask := 0; mask < 1<<n; mask++ {
				m := Measurement{Protocol: tc.protocol}
				slots := sitePointers(&m.Skinfolds)
				want := 0.0
				for i, site := range tc.sites {
					if mask&(1<<i) != 0 {
						v := float64(i + 1)
						*slots[site] = &v
						want += v
					}
				}
				sum, ok := SkinfoldSum(m, tc.sex)
				full := mask == 1<<n-1
				if ok != full {
					t.Fatalf("mask %b: ok=%v want %v", mask, ok, full)
				}
				if full && sum != want {
					t.Fatalf("sum = %v, want %v", sum, want)
				}
			}
		})
	}
}

func TestSkinfoldSumIgnoresSitesOutsideProtocol(t *testing.T) {
	m := Measurement{
		Protocol: ThreeSite,
		Skinfolds: Skinfolds{
			Chest: Float(10), Abdominal: Float(15), Thigh: Float(12),
			Triceps: Float(100), Subscapular: Float(100),
		},
	}
	sum, ok := SkinfoldSum(m, Male)
	if !ok || sum != 37 {
		t.Fatalf("SkinfoldSum = (%v, %v), want (37, true)", sum, ok)
	}
}

func TestUndefinedProtocolHasNoBodyFat(t *testing.T) {
	all := Skinfolds{
		Triceps: Float(10), Subscapular: Float(10), Chest: Float(10), Midaxillary: Float(10),
		Abdominal: Float(10), Suprailiac: Float(10), Thigh: Float(10),
	}
	for _, sex := range []Sex{Male, Female} {
		m := Measurement{Protocol: Undefined, Skinfolds: all, WeightKg: Float(70)}
		s := Subject{Sex: sex, BirthDate: birth(1990, time.January, 1)}
		if bf := BodyFatPercent(m, s, date(2024, time.January, 1)); bf != nil {
			t.Fatalf("%s: expected no body fat for undefined protocol, got %v", sex, *bf)
		}
	}
}

func TestBodyDensityFormulas(t *testing.T) {
	on := date(2024, time.June, 15)
	cases := []struct {
		name        string
		m           Measurement
		s           Subject
		wantDensity float64
		wantFat     float64
	}{
		{
			name: "three-site male",
			m: Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{
				Chest: Float(10), Abdominal: Float(15), Thigh: Float(12),
			}},
			s:           Subject{Sex: Male, BirthDate: birth(1994, time.June, 15)},
			wantDensity: 1.0732605,
			wantFat:     11.2114207,
		},
		{
			name: "three-site female",
			m: Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{
				Triceps: Float(15), Suprailiac: Float(12), Thigh: Float(20),
			}},
			s:           Subject{Sex: Female, BirthDate: birth(1999, time.June, 1)},
			wantDensity: 1.0544265,
			wantFat:     19.4495064,
		},
		{
			name: "seven-site male",
			m: Measurement{Protocol: SevenSite, Skinfolds: Skinfolds{
				Triceps: Float(10), Subscapular: Float(10), Chest: Float(10), Midaxillary: Float(10),
				Abdominal: Float(10), Suprailiac: Float(10), Thigh: Float(10),
			}},
			s:           Subject{Sex: Male, BirthDate: birth(1984, time.March, 2)},
			wantDensity: 1.0727153,
			wantFat:     11.4458282,
		},
		{
			name: "seven-site female",
			m: Measurement{Protocol: SevenSite, Skinfolds: Skinfolds{
				Triceps: Float(13), Subscapular: Float(13), Chest: Float(13), Midaxillary: Float(13),
				Abdominal: Float(13), Suprailiac: Float(13), Thigh: Float(13),
			}},
			s:           Subject{Sex: Female, BirthDate: birth(1989, time.June, 15)},
			wantDensity: 1.05440395,
			wantFat:     19.4595463,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := BodyDensity(tc.m, tc.s, on)
			if !ok {
				t.Fatalf("expected density")
			}
			approx(t, "density", d, tc.wantDensity, 1e-9)
			bf := BodyFatPercent(tc.m, tc.s, on)
			if bf == nil {
				t.Fatalf("expected body fat")
			}
			approx(t, "body fat", *bf, tc.wantFat, 1e-6)
		})
	}
}

func TestBodyFatRequiresAge(t *testing.T) {
	m := Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{Chest: Float(10), Abdominal: Float(15), Thigh: Float(12)}}
	on := date(2024, time.June, 15)
	if bf := BodyFatPercent(m, Subject{Sex: Male}, on); bf != nil {
		t.Fatalf("expected nil without birth date, got %v", *bf)
	}
	future := Subject{Sex: Male, BirthDate: birth(2030, time.January, 1)}
	if bf := BodyFatPercent(m, future, on); bf != nil {
		t.Fatalf("expected nil for birth date after evaluation, got %v", *bf)
	}
}

func TestBodyFatRejectsNonPositiveDensity(t *testing.T) {
	// an implausible age pushes the regression below zero
	m := Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{Chest: Float(10), Abdominal: Float(15), Thigh: Float(12)}}
	old := Subject{Sex: Male, BirthDate: birth(-5000, time.January, 1)}
	on := date(2024, time.June, 15)
	d, ok := BodyDensity(m, old, on)
	if !ok || d > 0 {
		t.Fatalf("test setup: density = %v, ok=%v; want non-positive", d, ok)
	}
	if bf := BodyFatPercent(m, old, on); bf != nil {
		t.Fatalf("expected nil for non-positive density, got %v", *bf)
	}
}

func TestBodyFatRejectsNonFiniteDensity(t *testing.T) {
	m := Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{Chest: Float(math.NaN()), Abdominal: Float(15), Thigh: Float(12)}}
	s := Subject{Sex: Male, BirthDate: birth(1990, time.January, 1)}
	if bf := BodyFatPercent(m, s, date(2024, time.January, 1)); bf != nil {
		t.Fatalf("expected nil for NaN density, got %v", *bf)
	}
}

func TestBodyFatIsContinuousInSkinfolds(t *testing.T) {
	on := date(2024, time.June, 15)
	s := Subject{Sex: Female, BirthDate: birth(1990, time.February, 10)}
	const eps = 1e-6
	for base := 5.0; base < 60; base += 5 {
		a := Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{Triceps: Float(base), Suprailiac: Float(12), Thigh: Float(20)}}
		b := Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{Triceps: Float(base + eps), Suprailiac: Float(12), Thigh: Float(20)}}
		fa, fb := BodyFatPercent(a, s, on), BodyFatPercent(b, s, on)
		if fa == nil || fb == nil {
			t.Fatalf("expected values at base %v", base)
		}
		if diff := math.Abs(*fa - *fb); diff > 1e-3 {
			t.Fatalf("jump of %v at base %v", diff, base)
		}
	}
}

func TestBodyFatUnknownSex(t *testing.T) {
	m := Measurement{Protocol: SevenSite, Skinfolds: Skinfolds{
		Triceps: Float(10), Subscapular: Float(10), Chest: Float(10), Midaxillary: Float(10),
		Abdominal: Float(10), Suprailiac: Float(10), Thigh: Float(10),
	}}
	s := Subject{Sex: Sex("other"), BirthDate: birth(1990, time.January, 1)}
	if bf := BodyFatPercent(m, s, date(2024, time.January, 1)); bf != nil {
		t.Fatalf("expected nil for unknown sex, got %v", *bf)
	}
}
