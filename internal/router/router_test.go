package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator"
	evaluatorrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement"
	measurementrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject"
	subjectrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/token"
	tokenrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/token/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database/dbtest"
)

const base = "/bodycomp-api"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC))

	sr := subjectrepo.NewSubjectRepo(db)
	mr := measurementrepo.NewMeasurementRepo(db)
	er := evaluatorrepo.NewEvaluatorRepo(db)
	rr := tokenrepo.NewRefreshRepo(db)
	for _, ensure := range []func(context.Context) error{sr.EnsureTable, mr.EnsureTable, er.EnsureTable, rr.EnsureTable} {
		if err := ensure(ctx); err != nil {
			t.Fatalf("ensure table: %v", err)
		}
	}
	tokens, err := token.NewService(nil, "http://test"+base, 15*time.Minute, clock)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	metrics := telemetry.New()
	subjects := subject.NewService(sr, clock)
	measurements := measurement.NewService(mr, subjects, clock, metrics)
	evaluators := evaluator.NewService(er, evaluator.BcryptHasher{Cost: bcrypt.MinCost}, clock)

	h := RegisterRoutes(Deps{
		Logger:       logger,
		BasePath:     base,
		DB:           db,
		Tokens:       tokens,
		Metrics:      metrics,
		Subjects:     subject.NewHandler(subjects, logger),
		Measurements: measurement.NewHandler(measurements, logger),
		Evaluators:   evaluator.NewHandler(evaluators, tokens, logger).WithSessions(token.NewSessions(rr, time.Hour, clock)),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, bearer, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+base+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func login(t *testing.T, srv *httptest.Server) (access, refresh string) {
	t.Helper()
	if resp, b := call(t, srv, http.MethodPost, "/auth/signup", "", `{"email":"coach@example.com","name":"Coach","password":"long-enough"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup = %d %s", resp.StatusCode, b)
	}
	resp, b := call(t, srv, http.MethodPost, "/auth/login", "", `{"email":"coach@example.com","password":"long-enough"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login = %d %s", resp.StatusCode, b)
	}
	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(b, &tok); err != nil || tok.AccessToken == "" || tok.RefreshToken == "" {
		t.Fatalf("token = %s err=%v", b, err)
	}
	return tok.AccessToken, tok.RefreshToken
}

func TestPublicEndpoints(t *testing.T) {
	srv := newServer(t)
	resp, b := call(t, srv, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("health = %d %q", resp.StatusCode, b)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}
	if resp, _ := call(t, srv, http.MethodGet, "/.well-known/jwks.json", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("jwks = %d", resp.StatusCode)
	}
	resp, b = call(t, srv, http.MethodPost, "/compute", "",
		`{"subject":{"sex":"male","birth_date":"1994-06-15","height_cm":180},"measurement":{"protocol":"three_site","weight_kg":80,"skinfolds":{"chest":10,"abdominal":15,"thigh":12}}}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"risk_category":"athlete"`) {
		t.Fatalf("compute = %d %s", resp.StatusCode, b)
	}
	resp, b = call(t, srv, http.MethodGet, "/metrics", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `bodycomp_results_computed_total{risk="athlete"} 1`) {
		t.Fatalf("metrics = %d\n%s", resp.StatusCode, b)
	}
	if !strings.Contains(string(b), `route="POST /bodycomp-api/compute"`) {
		t.Fatalf("route label missing from metrics")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newServer(t)
	for _, path := range []string{"/subjects", "/measurements", "/overview", "/timeline", "/subjects/1/results"} {
		if resp, _ := call(t, srv, http.MethodGet, path, "", ""); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", path, resp.StatusCode)
		}
	}
	if resp, _ := call(t, srv, http.MethodGet, "/subjects", "forged", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged token accepted")
	}
}

func TestAssessmentFlow(t *testing.T) {
	srv := newServer(t)
	tok, _ := login(t, srv)

	resp, b := call(t, srv, http.MethodPost, "/subjects", tok, `{"name":"Bruno","sex":"male","birth_date":"1994-06-15","height_cm":180}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create subject = %d %s", resp.StatusCode, b)
	}
	var sub struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &sub)

	resp, b = call(t, srv, http.MethodPost, "/subjects/"+sub.ID+"/measurements", tok,
		`{"assessed_on":"2024-06-01","protocol":"three_site","weight_kg":80,"skinfolds":{"chest":10,"abdominal":15,"thigh":12}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create measurement = %d %s", resp.StatusCode, b)
	}
	var m struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(b, &m)

	resp, b = call(t, srv, http.MethodGet, "/measurements/"+m.ID+"/result", tok, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"risk_category":"athlete"`) {
		t.Fatalf("result = %d %s", resp.StatusCode, b)
	}
	for _, path := range []string{"/subjects/" + sub.ID + "/results", "/subjects/" + sub.ID + "/progress", "/overview", "/timeline"} {
		if resp, b := call(t, srv, http.MethodGet, path, tok, ""); resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d %s", path, resp.StatusCode, b)
		}
	}

	if resp, _ := call(t, srv, http.MethodDelete, "/subjects/"+sub.ID, tok, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete subject = %d", resp.StatusCode)
	}
	if resp, _ := call(t, srv, http.MethodGet, "/measurements/"+m.ID, tok, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("measurement survived its subject: %d", resp.StatusCode)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	srv := newServer(t)
	_, refresh := login(t, srv)

	resp, b := call(t, srv, http.MethodPost, "/auth/refresh", "", `{"refresh_token":"`+refresh+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh = %d %s", resp.StatusCode, b)
	}
	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.Unmarshal(b, &tok)
	if resp, b := call(t, srv, http.MethodGet, "/subjects", tok.AccessToken, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("refreshed access token rejected: %d %s", resp.StatusCode, b)
	}
	if resp, _ := call(t, srv, http.MethodPost, "/auth/refresh", "", `{"refresh_token":"`+refresh+`"}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused refresh token = %d", resp.StatusCode)
	}
	if resp, _ := call(t, srv, http.MethodPost, "/auth/logout", "", `{"refresh_token":"`+tok.RefreshToken+`"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout = %d", resp.StatusCode)
	}
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("down") }

func TestHealthReportsDatabaseFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(downDB{})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id = %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}
}
