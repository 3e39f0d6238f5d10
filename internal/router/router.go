package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/token"
)

// Pinger reports database liveness for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the handlers and collaborators mounted by RegisterRoutes.
type Deps struct {
	Logger       *zap.SugaredLogger
	BasePath     string
	DB           Pinger
	Tokens       *token.Service
	Metrics      *telemetry.Metrics
	Subjects     *subject.Handler
	Measurements *measurement.Handler
	Evaluators   *evaluator.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	base := d.BasePath
	if base == "/" {
		base = ""
	}

	// public
	mux.HandleFunc("GET "+base+"/health", healthHandler(d.DB))
	mux.Handle("GET "+base+"/metrics", d.Metrics.Handler())
	mux.HandleFunc("GET "+base+"/.well-known/jwks.json", d.Tokens.JWKSHandler)
	mux.HandleFunc("POST "+base+"/auth/signup", d.Evaluators.Signup)
	mux.HandleFunc("POST "+base+"/auth/login", d.Evaluators.Login)
	mux.HandleFunc("POST "+base+"/auth/refresh", d.Evaluators.Refresh)
	mux.HandleFunc("POST "+base+"/auth/logout", d.Evaluators.Logout)
	mux.HandleFunc("POST "+base+"/compute", d.Measurements.Compute)

	// bearer-protected
	auth := d.Tokens.Middleware(d.Logger)
	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth(h))
	}
	s, m := d.Subjects, d.Measurements
	protect("GET "+base+"/subjects", s.List)
	protect("POST "+base+"/subjects", s.Create)
	protect("GET "+base+"/subjects/{id}", s.Get)
	protect("PUT "+base+"/subjects/{id}", s.Update)
	protect("DELETE "+base+"/subjects/{id}", s.Delete)
	protect("GET "+base+"/subjects/{id}/measurements", m.ListBySubject)
	protect("POST "+base+"/subjects/{id}/measurements", m.Create)
	protect("GET "+base+"/subjects/{id}/results", m.History)
	protect("GET "+base+"/subjects/{id}/progress", m.Progress)
	protect("GET "+base+"/measurements", m.ListAll)
	protect("GET "+base+"/measurements/{id}", m.Get)
	protect("PUT "+base+"/measurements/{id}", m.Update)
	protect("DELETE "+base+"/measurements/{id}", m.Delete)
	protect("GET "+base+"/measurements/{id}/result", m.Result)
	protect("GET "+base+"/overview", m.Overview)
	protect("GET "+base+"/timeline", m.Timeline)

	// outermost first: request id, logging, metrics, security headers
	var handler http.Handler = mux
	handler = SecurityHeadersMiddleware()(handler)
	handler = MetricsMiddleware(d.Metrics)(handler)
	handler = LoggingMiddleware(d.Logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
