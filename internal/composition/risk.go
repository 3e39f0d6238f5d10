package composition

// RiskCategory is a qualitative band of body-fat percentage.
type RiskCategory string

const (
	Essential  RiskCategory = "essential"
	Athlete    RiskCategory = "athlete"
	Fitness    RiskCategory = "fitness"
	Acceptable RiskCategory = "acceptable"
	Obesity    RiskCategory = "obesity"
)

// upper bounds (exclusive) for essential, athlete, fitness and acceptable.
var riskBands = map[Sex][4]float64{
	Male:   {6.0, 14.0, 18.0, 25.0},
	Female: {14.0, 21.0, 25.0, 32.0},
}

var bandOrder = [4]RiskCategory{Essential, Athlete, Fitness, Acceptable}

// ClassifyRisk maps a body-fat percentage to its sex-specific band. Values
// sitting exactly on a threshold belong to the higher band.
func ClassifyRisk(bodyFatPercent *float64, sex Sex) *RiskCategory {
	if bodyFatPercent == nil {
		return nil
	}
	bounds, ok := riskBands[sex]
	if !ok {
		return nil
	}
	bf := *bodyFatPercent
	cat := Obesity
	for i, upper := range bounds {
		if bf < upper {
			cat = bandOrder[i]
			break
		}
	}
	return &cat
}
