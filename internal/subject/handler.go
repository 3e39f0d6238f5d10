package subject

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/composition"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

// Handler exposes HTTP endpoints for subject records.
type Handler struct {
	svc      *Service
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger, validate: validator.New()}
}

// SubjectRequest is the body of create and update calls.
type SubjectRequest struct {
	Name      string   `json:"name" validate:"required,max=120"`
	Sex       string   `json:"sex" validate:"required,oneof=male female"`
	BirthDate *string  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	HeightCm  *float64 `json:"height_cm" validate:"omitempty,gte=30,lt=300"`
}

// SubjectResponse is the JSON view of a subject.
type SubjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sex       string    `json:"sex"`
	BirthDate *string   `json:"birth_date"`
	HeightCm  *float64  `json:"height_cm"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSubjectResponse converts an entity for output.
func NewSubjectResponse(s *entity.Subject) SubjectResponse {
	return SubjectResponse{
		ID:        s.ID,
		Name:      s.Name,
		Sex:       string(s.Sex),
		BirthDate: utilities.FormatDate(s.BirthDate),
		HeightCm:  s.HeightCm,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*entity.Subject, bool) {
	var req SubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid subject payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	s := &entity.Subject{Name: req.Name, Sex: composition.Sex(req.Sex), HeightCm: req.HeightCm}
	if req.BirthDate != nil {
		d, err := utilities.ParseDate(*req.BirthDate)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid birth_date"})
			return nil, false
		}
		s.BirthDate = &d
	}
	return s, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create subject", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewSubjectResponse(out))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	in.ID = r.PathValue("id")
	out, err := h.svc.Update(r.Context(), in)
	if err != nil {
		h.fail(w, "update subject", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewSubjectResponse(out))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get subject", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewSubjectResponse(out))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, "delete subject", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, "list subjects", err)
		return
	}
	out := make([]SubjectResponse, 0, len(list))
	for _, s := range list {
		out = append(out, NewSubjectResponse(s))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
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
