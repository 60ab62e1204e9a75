package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	wfhttp "github.com/yungbote/wayfarer-backend/internal/http"
	httpH "github.com/yungbote/wayfarer-backend/internal/http/handlers"
	httpMW "github.com/yungbote/wayfarer-backend/internal/http/middleware"
	"github.com/yungbote/wayfarer-backend/internal/jobs"
	"github.com/yungbote/wayfarer-backend/internal/observability"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/services"
)

type Services struct {
	Feedback services.FeedbackService
	Models   services.ModelService
}

type App struct {
	*Core

	Metrics  *observability.Metrics
	Runner   *jobs.Runner
	Services Services
	Server   *wfhttp.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		Headers:     cfg.Otel.Headers,
		SampleRatio: cfg.Otel.SampleRatio,
	})
	metrics := observability.Init(log)

	core, err := NewCore(ctx, log, cfg)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}
	a := &App{Core: core, Metrics: metrics, otelShutdown: otelShutdown}

	runner, err := jobs.NewRunner(jobs.RunnerDeps{
		Log:        log,
		Runs:       core.Repos.Runs,
		Driver:     core.Driver,
		Reconciler: core.Aggregates.TrainingRun,
		Metrics:    metrics,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init training runner: %w", err)
	}
	if _, err := runner.RecoverInterrupted(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("recover interrupted runs: %w", err)
	}
	a.Runner = runner

	log.Info("Wiring services...")
	a.Services = Services{
		Feedback: services.NewFeedbackService(log, core.Repos.Feedback, metrics),
		Models:   services.NewModelService(log, core.Repos.Versions, core.Aggregates.Registry),
	}

	log.Info("Wiring handlers...")
	a.Server = wfhttp.NewServer(wfhttp.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		Metrics:         metrics,
		AdminMiddleware: httpMW.NewAdminMiddleware(log, cfg.AdminJWTSecret),
		HealthHandler:   httpH.NewHealthHandler(core.DB.Ping),
		FeedbackHandler: httpH.NewFeedbackHandler(a.Services.Feedback),
		TrainingHandler: httpH.NewTrainingHandler(runner),
		ModelHandler:    httpH.NewModelHandler(a.Services.Models),
	})
	return a, nil
}

// Run serves HTTP until ctx is done, then drains the server and the runner.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return errors.New("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartRunLedgerCollector(gctx, a.Log, a.DB.DB())

	g.Go(func() error {
		a.Log.Info("Server listening", "addr", a.Cfg.Address())
		return a.Server.Run(a.Cfg.Address())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.Cfg.ShutdownTimeout)
		defer cancel()
		a.Log.Info("Shutting down")
		return errors.Join(
			a.Server.Shutdown(shutdownCtx),
			a.Runner.Shutdown(shutdownCtx),
		)
	})
	return g.Wait()
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Core.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
