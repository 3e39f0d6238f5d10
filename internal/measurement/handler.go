package measurement

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/composition"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

type Handler struct {
	svc      *Service
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger, validate: validator.New()}
}

// SkinfoldsRequest carries skinfold sites in millimetres.
type SkinfoldsRequest struct {
	Triceps     *float64 `json:"triceps" validate:"omitempty,gte=0,lte=200"`
	Subscapular *float64 `json:"subscapular" validate:"omitempty,gte=0,lte=200"`
	Chest       *float64 `json:"chest" validate:"omitempty,gte=0,lte=200"`
	Midaxillary *float64 `json:"midaxillary" validate:"omitempty,gte=0,lte=200"`
	Abdominal   *float64 `json:"abdominal" validate:"omitempty,gte=0,lte=200"`
	Suprailiac  *float64 `json:"suprailiac" validate:"omitempty,gte=0,lte=200"`
	Thigh       *float64 `json:"thigh" validate:"omitempty,gte=0,lte=200"`
}

func (r SkinfoldsRequest) toEngine() composition.Skinfolds {
	return composition.Skinfolds{
		Triceps: r.Triceps, Subscapular: r.Subscapular, Chest: r.Chest, Midaxillary: r.Midaxillary,
		Abdominal: r.Abdominal, Suprailiac: r.Suprailiac, Thigh: r.Thigh,
	}
}

// CircumferencesRequest carries girths in centimetres.
type CircumferencesRequest struct {
	BicepsRelaxed *float64 `json:"biceps_relaxed" validate:"omitempty,gte=0,lte=300"`
	BicepsFlexed  *float64 `json:"biceps_flexed" validate:"omitempty,gte=0,lte=300"`
	Chest         *float64 `json:"chest" validate:"omitempty,gte=0,lte=300"`
	Waist         *float64 `json:"waist" validate:"omitempty,gte=0,lte=300"`
	Abdomen       *float64 `json:"abdomen" validate:"omitempty,gte=0,lte=300"`
	Hip           *float64 `json:"hip" validate:"omitempty,gte=0,lte=300"`
	Thigh         *float64 `json:"thigh" validate:"omitempty,gte=0,lte=300"`
	Calf          *float64 `json:"calf" validate:"omitempty,gte=0,lte=300"`
}

func (r CircumferencesRequest) toEngine() composition.Circumferences {
	return composition.Circumferences{
		BicepsRelaxed: r.BicepsRelaxed, BicepsFlexed: r.BicepsFlexed, Chest: r.Chest, Waist: r.Waist,
		Abdomen: r.Abdomen, Hip: r.Hip, Thigh: r.Thigh, Calf: r.Calf,
	}
}

// MeasurementRequest is the body of create and update calls.
type MeasurementRequest struct {
	AssessedOn     string                `json:"assessed_on" validate:"required,datetime=2006-01-02"`
	Protocol       string                `json:"protocol" validate:"required,oneof=three_site seven_site undefined"`
	WeightKg       *float64              `json:"weight_kg" validate:"omitempty,gt=0,lt=1000"`
	Skinfolds      SkinfoldsRequest      `json:"skinfolds"`
	Circumferences CircumferencesRequest `json:"circumferences"`
}

// MeasurementResponse is the JSON view of a stored measurement.
type MeasurementResponse struct {
	ID             string                     `json:"id"`
	SubjectID      string                     `json:"subject_id"`
	AssessedOn     string                     `json:"assessed_on"`
	Protocol       composition.Protocol       `json:"protocol"`
	WeightKg       *float64                   `json:"weight_kg"`
	Skinfolds      composition.Skinfolds      `json:"skinfolds"`
	Circumferences composition.Circumferences `json:"circumferences"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

func NewMeasurementResponse(m *entity.Measurement) MeasurementResponse {
	return MeasurementResponse{
		ID:             m.ID,
		SubjectID:      m.SubjectID,
		AssessedOn:     m.AssessedOn.Format(utilities.DateLayout),
		Protocol:       m.Protocol,
		WeightKg:       m.WeightKg,
		Skinfolds:      m.Skinfolds(),
		Circumferences: m.Circumferences(),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type ComparisonResponse struct {
	MeasurementID  string   `json:"measurement_id"`
	AssessedOn     string   `json:"assessed_on"`
	BodyFatPercent *float64 `json:"body_fat_percent"`
	WeightKg       *float64 `json:"weight_kg"`
	LeanMassKg     *float64 `json:"lean_mass_kg"`
	FatMassKg      *float64 `json:"fat_mass_kg"`
}

func newComparisonResponse(c *Comparison) *ComparisonResponse {
	if c == nil {
		return nil
	}
	return &ComparisonResponse{
		MeasurementID:  c.MeasurementID,
		AssessedOn:     c.AssessedOn.Format(utilities.DateLayout),
		BodyFatPercent: c.BodyFatPercent,
		WeightKg:       c.WeightKg,
		LeanMassKg:     c.LeanMassKg,
		FatMassKg:      c.FatMassKg,
	}
}

// AssessmentResponse is a measurement with its computed result.
type AssessmentResponse struct {
	Measurement MeasurementResponse `json:"measurement"`
	SubjectName string              `json:"subject_name"`
	Result      composition.Result  `json:"result"`
	Comparison  *ComparisonResponse `json:"comparison,omitempty"`
}

func newAssessmentResponse(a *Assessment) *AssessmentResponse {
	if a == nil {
		return nil
	}
	return &AssessmentResponse{
		Measurement: NewMeasurementResponse(a.Measurement),
		SubjectName: a.Subject.Name,
		Result:      a.Result,
		Comparison:  newComparisonResponse(a.Comparison),
	}
}

type overviewResponse struct {
	Subject subject.SubjectResponse `json:"subject"`
	Latest  *AssessmentResponse     `json:"latest"`
}

type progressResponse struct {
	Subject subject.SubjectResponse `json:"subject"`
	First   *AssessmentResponse     `json:"first"`
	Latest  *AssessmentResponse     `json:"latest"`
	Change  *ComparisonResponse     `json:"change"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*entity.Measurement, bool) {
	var req MeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid measurement payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	on, err := utilities.ParseDate(req.AssessedOn)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid assessed_on"})
		return nil, false
	}
	m := &entity.Measurement{AssessedOn: on, Protocol: composition.Protocol(req.Protocol), WeightKg: req.WeightKg}
	m.SetSkinfolds(req.Skinfolds.toEngine())
	m.SetCircumferences(req.Circumferences.toEngine())
	return m, true
}

// Create handles POST /subjects/{id}/measurements.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	m, ok := h.decode(w, r)
	if !ok {
		return
	}
	m.SubjectID = r.PathValue("id")
	out, err := h.svc.Create(r.Context(), m)
	if err != nil {
		h.fail(w, "create measurement", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewMeasurementResponse(out))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	m, ok := h.decode(w, r)
	if !ok {
		return
	}
	m.ID = r.PathValue("id")
	out, err := h.svc.Update(r.Context(), m)
	if err != nil {
		h.fail(w, "update measurement", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewMeasurementResponse(out))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get measurement", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewMeasurementResponse(out))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, "delete measurement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBySubject handles GET /subjects/{id}/measurements.
func (h *Handler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListBySubject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "list measurements", err)
		return
	}
	h.writeList(w, list)
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.fail(w, "list measurements", err)
		return
	}
	h.writeList(w, list)
}

func (h *Handler) writeList(w http.ResponseWriter, list []*entity.Measurement) {
	out := make([]MeasurementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, NewMeasurementResponse(m))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Result handles GET /measurements/{id}/result.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "compute result", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newAssessmentResponse(a))
}

// History handles GET /subjects/{id}/results.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.History(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "subject history", err)
		return
	}
	h.writeAssessments(w, list)
}

// Timeline handles GET /timeline.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Timeline(r.Context())
	if err != nil {
		h.fail(w, "timeline", err)
		return
	}
	h.writeAssessments(w, list)
}

func (h *Handler) writeAssessments(w http.ResponseWriter, list []*Assessment) {
	out := make([]*AssessmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, newAssessmentResponse(a))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Overview handles GET /overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Overview(r.Context())
	if err != nil {
		h.fail(w, "overview", err)
		return
	}
	out := make([]overviewResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, overviewResponse{Subject: subject.NewSubjectResponse(e.Subject), Latest: newAssessmentResponse(e.Latest)})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Progress handles GET /subjects/{id}/progress.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "progress", err)
		return
	}
	h.writeJSON(w, http.StatusOK, progressResponse{
		Subject: subject.NewSubjectResponse(p.Subject),
		First:   newAssessmentResponse(p.First),
		Latest:  newAssessmentResponse(p.Latest),
		Change:  newComparisonResponse(p.Change),
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "measurement not found"})
	case errors.Is(err, ErrSubjectNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "subject not found"})
	case errors.Is(err, ErrInvalid):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw(op+" failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
	}
}

// writeJSON encodes before writing the status so an unencodable value
// becomes a 500 instead of an empty success.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		h.logger.Errorw("encode response failed", "err", err)
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
