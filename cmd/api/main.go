package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/config"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator"
	evaluatorrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement"
	measurementrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/measurement/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/router"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject"
	subjectrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/subject/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/token"
	tokenrepo "github.com/ovaphlow/pitchfork/service-bodycomp/internal/token/repo"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

func main() {
	// load .env file if present so BODYCOMP_* variables can live there
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	cfg, err := config.Load(".", "./config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	lg, err := utilities.Init(cfg.Log())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting bodycomp service", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)

	if err := utilities.SetSnowflakeNode(cfg.IDs.SnowflakeNode); err != nil {
		sugar.Fatalf("snowflake node: %v", err)
	}

	// init db
	sqlDB, err := database.Connect(cfg.DB())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	db := sqlx.NewDb(sqlDB, cfg.Database.Driver)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subjects := subjectrepo.NewSubjectRepo(db)
	measurements := measurementrepo.NewMeasurementRepo(db)
	evaluators := evaluatorrepo.NewEvaluatorRepo(db)
	refreshes := tokenrepo.NewRefreshRepo(db)
	// tables with foreign keys come after the tables they reference
	if err := ensureTables(ctx, subjects.EnsureTable, measurements.EnsureTable, evaluators.EnsureTable, refreshes.EnsureTable); err != nil {
		sugar.Fatalf("ensure tables: %v", err)
	}

	var key *rsa.PrivateKey
	if cfg.Token.KeyFile != "" {
		if key, err = token.LoadKey(cfg.Token.KeyFile); err != nil {
			sugar.Fatalf("signing key: %v", err)
		}
	}
	clock := clockwork.NewRealClock()
	tokens, err := token.NewService(key, cfg.Token.Issuer, cfg.Token.TTL, clock)
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}
	if key == nil {
		sugar.Warn("no token.key_file configured; tokens are signed with an ephemeral key")
	}
	sessions := token.NewSessions(refreshes, cfg.Token.RefreshTTL, clock)
	go purgeSessions(ctx, sessions, sugar)

	metrics := telemetry.New()
	subjectSvc := subject.NewService(subjects, clock)
	measurementSvc := measurement.NewService(measurements, subjectSvc, clock, metrics)
	evaluatorSvc := evaluator.NewService(evaluators, nil, clock)

	// mount http server
	handler := router.RegisterRoutes(router.Deps{
		Logger:       sugar,
		BasePath:     cfg.Server.BasePath,
		DB:           db,
		Tokens:       tokens,
		Metrics:      metrics,
		Subjects:     subject.NewHandler(subjectSvc, sugar),
		Measurements: measurement.NewHandler(measurementSvc, sugar),
		Evaluators:   evaluator.NewHandler(evaluatorSvc, tokens, sugar).WithSessions(sessions),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Info("service is running; press Ctrl+C to stop")
	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func ensureTables(ctx context.Context, fns ...func(context.Context) error) error {
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// purgeSessions drops expired refresh sessions hourly until ctx is done.
func purgeSessions(ctx context.Context, s *token.Sessions, logger *zap.SugaredLogger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Purge(ctx)
			if err != nil {
				logger.Warnw("purge refresh sessions failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Debugw("purged refresh sessions", "count", n)
			}
		}
	}
}
