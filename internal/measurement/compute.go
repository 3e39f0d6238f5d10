package measurement

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/composition"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

// ComputeSubject is the inline subject of a stateless compute call.
type ComputeSubject struct {
	Sex       string   `json:"sex" validate:"required,oneof=male female"`
	BirthDate *string  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	HeightCm  *float64 `json:"height_cm" validate:"omitempty,gte=30,lt=300"`
}

// ComputeMeasurement is the inline measurement of a stateless compute call.
type ComputeMeasurement struct {
	Protocol       string                `json:"protocol" validate:"required,oneof=three_site seven_site undefined"`
	WeightKg       *float64              `json:"weight_kg" validate:"omitempty,gt=0,lt=1000"`
	Skinfolds      SkinfoldsRequest      `json:"skinfolds"`
	Circumferences CircumferencesRequest `json:"circumferences"`
}

// ComputeRequest asks for a result without storing anything. EvaluatedOn
// defaults to today and only affects the derived age.
type ComputeRequest struct {
	Subject     ComputeSubject     `json:"subject"`
	Measurement ComputeMeasurement `json:"measurement"`
	EvaluatedOn *string            `json:"evaluated_on" validate:"omitempty,datetime=2006-01-02"`
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := utilities.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Compute handles POST /compute.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	born, err := parseOptionalDate(req.Subject.BirthDate)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid birth_date"})
		return
	}
	on, err := parseOptionalDate(req.EvaluatedOn)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid evaluated_on"})
		return
	}
	sub := composition.Subject{Sex: composition.Sex(req.Subject.Sex), BirthDate: born, HeightCm: req.Subject.HeightCm}
	m := composition.Measurement{
		Protocol:       composition.Protocol(req.Measurement.Protocol),
		WeightKg:       req.Measurement.WeightKg,
		Skinfolds:      req.Measurement.Skinfolds.toEngine(),
		Circumferences: req.Measurement.Circumferences.toEngine(),
	}
	h.writeJSON(w, http.StatusOK, h.svc.Evaluate(m, sub, on))
}
