package composition

import (
	"math"
	"testing"
	"time"
)

func TestClassifyRiskBoundaries(t *testing.T) {
	cases := []struct {
		sex  Sex
		bf   float64
		want RiskCategory
	}{
		{Male, 0, Essential},
		{Male, 5.999, Essential},
		{Male, 6.0, Athlete},
		{Male, 13.999, Athlete},
		{Male, 14.0, Fitness},
		{Male, 18.0, Acceptable},
		{Male, 24.999, Acceptable},
		{Male, 25.0, Obesity},
		{Male, 40, Obesity},
		{Female, 13.999, Essential},
		{Female, 14.0, Athlete},
		{Female, 21.0, Fitness},
		{Female, 25.0, Acceptable},
		{Female, 31.999, Acceptable},
		{Female, 32.0, Obesity},
	}
	for _, tc := range cases {
		got := ClassifyRisk(Float(tc.bf), tc.sex)
		if got == nil || *got != tc.want {
			t.Fatalf("ClassifyRisk(%v, %s) = %v, want %s", tc.bf, tc.sex, got, tc.want)
		}
	}
}

func TestClassifyRiskAbsent(t *testing.T) {
	if got := ClassifyRisk(nil, Male); got != nil {
		t.Fatalf("expected nil category, got %s", *got)
	}
	if got := ClassifyRisk(Float(20), Sex("")); got != nil {
		t.Fatalf("expected nil category for unknown sex, got %s", *got)
	}
}

func TestBMI(t *testing.T) {
	m := Measurement{WeightKg: Float(70)}
	bmi := BMI(Subject{HeightCm: Float(175)}, m)
	if bmi == nil {
		t.Fatal("expected bmi")
	}
	approx(t, "bmi", *bmi, 22.857142857, 1e-6)

	for _, h := range []*float64{nil, Float(0), Float(-170)} {
		if got := BMI(Subject{HeightCm: h}, m); got != nil {
			t.Fatalf("expected nil bmi for height %v, got %v", h, *got)
		}
	}
	if got := BMI(Subject{HeightCm: Float(175)}, Measurement{}); got != nil {
		t.Fatalf("expected nil bmi without weight, got %v", *got)
	}
}

func TestNonFiniteResultsAreAbsent(t *testing.T) {
	s := Subject{Sex: Male, BirthDate: birth(1994, time.June, 15), HeightCm: Float(1)}
	folds := Skinfolds{Chest: Float(10), Abdominal: Float(15), Thigh: Float(12)}
	on := date(2024, time.June, 15)

	cases := []struct {
		name   string
		weight float64
	}{
		{"bmi overflows", 1e305},
		{"mass overflows", math.MaxFloat64},
		{"nan weight", math.NaN()},
		{"infinite weight", math.Inf(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Compute(Measurement{Protocol: ThreeSite, WeightKg: Float(tc.weight), Skinfolds: folds}, s, on)
			if r.BMI != nil {
				t.Fatalf("bmi = %v, want absent", *r.BMI)
			}
			if tc.weight != 1e305 && (r.FatMassKg != nil || r.LeanMassKg != nil) {
				t.Fatalf("mass = %v/%v, want absent", r.FatMassKg, r.LeanMassKg)
			}
			if r.BodyFatPercent == nil || r.Risk == nil {
				t.Fatalf("body fat does not depend on weight, got %+v", r)
			}
		})
	}
}

func TestComputeFullResult(t *testing.T) {
	s := Subject{Sex: Male, BirthDate: birth(1994, time.June, 15), HeightCm: Float(180)}
	m := Measurement{
		Protocol: ThreeSite,
		WeightKg: Float(80),
		Skinfolds: Skinfolds{
			Chest: Float(10), Abdominal: Float(15), Thigh: Float(12),
		},
	}
	r := Compute(m, s, date(2024, time.June, 15))
	if r.BodyFatPercent == nil || r.FatMassKg == nil || r.LeanMassKg == nil || r.BMI == nil || r.Risk == nil {
		t.Fatalf("expected every field, got %+v", r)
	}
	approx(t, "body fat", *r.BodyFatPercent, 11.2114207, 1e-6)
	approx(t, "fat mass", *r.FatMassKg, 80*11.2114207/100, 1e-5)
	approx(t, "fat+lean", *r.FatMassKg+*r.LeanMassKg, 80, 1e-9)
	approx(t, "bmi", *r.BMI, 80/(1.8*1.8), 1e-9)
	if *r.Risk != Athlete {
		t.Fatalf("risk = %s, want %s", *r.Risk, Athlete)
	}
}

func TestComputeMissingSkinfoldNarrowsResult(t *testing.T) {
	s := Subject{Sex: Female, BirthDate: birth(1990, time.May, 5), HeightCm: Float(165)}
	m := Measurement{
		Protocol: SevenSite,
		WeightKg: Float(62),
		Skinfolds: Skinfolds{
			Triceps: Float(15), Subscapular: Float(12), Chest: Float(9), Midaxillary: Float(10),
			Abdominal: Float(18), Suprailiac: Float(14),
		},
	}
	r := Compute(m, s, date(2024, time.January, 1))
	if r.BodyFatPercent != nil || r.FatMassKg != nil || r.LeanMassKg != nil || r.Risk != nil {
		t.Fatalf("expected body fat dependent fields to be nil, got %+v", r)
	}
	if r.BMI == nil {
		t.Fatal("bmi should not depend on skinfolds")
	}
}

func TestComputeWithoutWeight(t *testing.T) {
	s := Subject{Sex: Female, BirthDate: birth(1999, time.June, 1)}
	m := Measurement{Protocol: ThreeSite, Skinfolds: Skinfolds{Triceps: Float(15), Suprailiac: Float(12), Thigh: Float(20)}}
	r := Compute(m, s, date(2024, time.June, 15))
	if r.BodyFatPercent == nil || r.Risk == nil {
		t.Fatalf("expected body fat and risk, got %+v", r)
	}
	if *r.Risk != Athlete {
		t.Fatalf("risk = %s, want %s", *r.Risk, Athlete)
	}
	if r.FatMassKg != nil || r.LeanMassKg != nil || r.BMI != nil {
		t.Fatalf("expected mass and bmi to be nil, got %+v", r)
	}
}

func TestComputeMassPartitionHolds(t *testing.T) {
	on := date(2024, time.June, 15)
	s := Subject{Sex: Male, BirthDate: birth(1970, time.July, 20)}
	for w := 40.0; w <= 160; w += 7.3 {
		for sf := 3.0; sf <= 45; sf += 4.1 {
			m := Measurement{Protocol: SevenSite, WeightKg: Float(w), Skinfolds: Skinfolds{
				Triceps: Float(sf), Subscapular: Float(sf), Chest: Float(sf), Midaxillary: Float(sf),
				Abdominal: Float(sf), Suprailiac: Float(sf), Thigh: Float(sf),
			}}
			r := Compute(m, s, on)
			if r.FatMassKg == nil || r.LeanMassKg == nil {
				t.Fatalf("expected masses for w=%v sf=%v", w, sf)
			}
			if math.Abs(*r.FatMassKg+*r.LeanMassKg-w) > 1e-9 {
				t.Fatalf("fat+lean != weight for w=%v sf=%v", w, sf)
			}
		}
	}
}

func TestComputeDoesNotMutateInputs(t *testing.T) {
	bd := date(1990, time.January, 1)
	s := Subject{Sex: Male, BirthDate: &bd, HeightCm: Float(170)}
	m := Measurement{Protocol: ThreeSite, WeightKg: Float(70), Skinfolds: Skinfolds{Chest: Float(10), Abdominal: Float(15), Thigh: Float(12)}}
	_ = Compute(m, s, date(2024, time.January, 1))
	if *m.WeightKg != 70 || *m.Skinfolds.Chest != 10 || *s.HeightCm != 170 || !s.BirthDate.Equal(bd) {
		t.Fatal("inputs were modified")
	}
}
