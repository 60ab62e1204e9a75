// Package jobs runs training pipelines in the background and keeps the
// training_run ledger in step with them.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	jobtypes "github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/observability"
	"github.com/yungbote/wayfarer-backend/internal/platform/ctxutil"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

// Executor is the part of training.Driver the runner needs.
type Executor interface {
	Execute(ctx context.Context, opts training.Options, obs training.Observer) (*training.Summary, error)
	Options() training.Options
}

type RunnerDeps struct {
	Log        *logger.Logger
	Runs       repos.TrainingRunRepo
	Driver     Executor
	Reconciler domainagg.TrainingRunAggregate
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// EnqueueInput overrides the driver's options for one run. Nil fields keep the default.
type EnqueueInput struct {
	MinScore           *float64
	Limit              *int
	ValidationFraction *float64
	Seed               *int64
	BaseModel          string
	RequestedBy        string
}

type Runner struct {
	deps RunnerDeps
	log  *logger.Logger

	base     context.Context
	stopBase context.CancelFunc

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(deps RunnerDeps) (*Runner, error) {
	switch {
	case deps.Runs == nil:
		return nil, errors.New("jobs runner: missing training run repo")
	case deps.Driver == nil:
		return nil, errors.New("jobs runner: missing driver")
	case deps.Reconciler == nil:
		return nil, errors.New("jobs runner: missing training run aggregate")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	base, stop := context.WithCancel(context.Background())
	return &Runner{
		deps:     deps,
		log:      deps.Log.With("component", "TrainingRunner"),
		base:     base,
		stopBase: stop,
		active:   map[uuid.UUID]context.CancelFunc{},
	}, nil
}

// RecoverInterrupted fails runs left queued or running by a previous process.
// Call it once at startup, before Enqueue.
func (r *Runner) RecoverInterrupted(ctx context.Context) (int64, error) {
	now := r.deps.Now().UTC()
	n, err := r.deps.Runs.UpdateWhereStatus(dbctx.Context{Ctx: ctx},
		[]string{jobtypes.RunStatusQueued, jobtypes.RunStatusRunning},
		map[string]interface{}{
			"status":      jobtypes.RunStatusFailed,
			"error_kind":  "interrupted",
			"error":       "process stopped before the run finished",
			"finished_at": now,
			"updated_at":  now,
		})
	if err != nil {
		return 0, aggregates.MapError("Jobs.TrainingRun.RecoverInterrupted", err)
	}
	if n > 0 {
		r.log.Warn("marked interrupted training runs failed", "count", n)
	}
	return n, nil
}

// Enqueue records a queued run and starts it. It returns a RunInProgress
// error without writing anything when this process already has a run active.
func (r *Runner) Enqueue(ctx context.Context, in EnqueueInput) (*types.TrainingRun, error) {
	opts, err := r.options(in)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.base.Err() != nil {
		return nil, errors.New("jobs runner: shut down")
	}
	if len(r.active) > 0 {
		return nil, &training.Error{Kind: training.KindRunInProgress, Stage: training.StateIdle}
	}

	now := r.deps.Now().UTC()
	run, err := r.deps.Runs.Create(dbctx.Context{Ctx: ctx}, &types.TrainingRun{
		Status:      jobtypes.RunStatusQueued,
		Stage:       string(training.StateIdle),
		RequestedBy: strings.TrimSpace(in.RequestedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, aggregates.MapError("Jobs.TrainingRun.Enqueue", err)
	}

	runCtx, cancel := context.WithCancel(r.base)
	if td := ctxutil.GetTraceData(ctx); td != nil {
		runCtx = ctxutil.WithTraceData(runCtx, td)
	}
	r.active[run.ID] = cancel
	r.wg.Add(1)
	go r.execute(runCtx, run.ID, opts)

	r.log.Info("training run queued", "run_id", run.ID, "requested_by", run.RequestedBy)
	snapshot := *run
	return &snapshot, nil
}

func (r *Runner) options(in EnqueueInput) (training.Options, error) {
	opts := r.deps.Driver.Options()
	if in.MinScore != nil {
		opts.MinScore = *in.MinScore
	}
	if in.Limit != nil {
		if *in.Limit <= 0 {
			return opts, &training.Error{Kind: training.KindValidation, Stage: training.StateIdle, Cause: fmt.Errorf("limit must be positive, got %d", *in.Limit)}
		}
		opts.Limit = *in.Limit
	}
	if in.ValidationFraction != nil {
		f := *in.ValidationFraction
		if !(f > 0 && f < 1) {
			return opts, &training.Error{Kind: training.KindValidation, Stage: training.StateIdle, Cause: fmt.Errorf("validation fraction must be in (0,1), got %v", f)}
		}
		opts.ValidationFraction = f
	}
	if in.Seed != nil {
		opts.Seed = *in.Seed
	}
	if b := strings.TrimSpace(in.BaseModel); b != "" {
		opts.BaseModel = b
	}
	return opts, nil
}

func (r *Runner) execute(ctx context.Context, runID uuid.UUID, opts training.Options) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		if cancel, ok := r.active[runID]; ok {
			cancel()
			delete(r.active, runID)
		}
		r.mu.Unlock()
	}()

	// ledger writes must land even after the run context is canceled
	ledgerCtx := context.WithoutCancel(ctx)
	started := r.deps.Now().UTC()
	r.update(ledgerCtx, runID, map[string]interface{}{
		"status":     jobtypes.RunStatusRunning,
		"started_at": started,
	})

	var (
		sum *training.Summary
		err error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("training run panic", "run_id", runID, "panic", rec)
				err = &training.Error{Kind: training.KindTraining, Stage: training.StateFailed, Cause: fmt.Errorf("panic: %v", rec)}
			}
		}()
		sum, err = r.deps.Driver.Execute(ctx, opts, func(_ context.Context, s training.State) {
			r.update(ledgerCtx, runID, map[string]interface{}{"stage": string(s)})
		})
	}()

	finished := r.deps.Now().UTC()
	status, updates := outcome(sum, err)
	updates["status"] = status
	updates["finished_at"] = finished
	r.update(ledgerCtx, runID, updates)

	consumed := 0
	if err == nil && sum != nil && sum.Status == training.StatusSucceeded {
		consumed = len(sum.ExampleIDs)
	}
	r.deps.Metrics.ObserveTrainingRun(status, finished.Sub(started), consumed)
	if err != nil {
		r.log.Warn("training run ended", "run_id", runID, "status", status, "error", err)
	} else {
		r.log.Info("training run ended", "run_id", runID, "status", status, "version", sum.Version)
	}
}

// outcome maps a driver result to the ledger status and columns.
func outcome(sum *training.Summary, err error) (string, map[string]interface{}) {
	updates := map[string]interface{}{}
	if err == nil {
		if sum == nil {
			sum = &training.Summary{Status: training.StatusNoData}
		}
		updates["stage"] = string(training.StateDone)
		updates["version"] = sum.Version
		updates["example_ids"] = jsonOrNil(sum.ExampleIDs)
		updates["summary"] = jsonOrNil(sum)
		updates["error_kind"] = ""
		updates["error"] = ""
		if sum.Status == training.StatusNoData {
			return jobtypes.RunStatusNoData, updates
		}
		return jobtypes.RunStatusSucceeded, updates
	}

	kind := training.KindOf(err)
	if kind == "" {
		kind = training.KindTraining
	}
	updates["error_kind"] = string(kind)
	updates["error"] = err.Error()
	var te *training.Error
	if errors.As(err, &te) && te.Stage != "" {
		updates["stage"] = string(te.Stage)
	}
	switch kind {
	case training.KindPartialFailure:
		updates["version"] = te.Version
		updates["example_ids"] = jsonOrNil(te.ExampleIDs)
		return jobtypes.RunStatusPartialFailure, updates
	case training.KindCanceled:
		return jobtypes.RunStatusCanceled, updates
	default:
		return jobtypes.RunStatusFailed, updates
	}
}

func jsonOrNil(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return datatypes.JSON(b)
}

func (r *Runner) update(ctx context.Context, runID uuid.UUID, updates map[string]interface{}) {
	if err := r.deps.Runs.UpdateFields(dbctx.Context{Ctx: ctx}, runID, updates); err != nil {
		r.log.Warn("training run ledger update failed", "run_id", runID, "error", err)
	}
}

// Cancel stops an active run. The run records its own terminal status: a
// cancel that arrives after recording started lets the run finish.
func (r *Runner) Cancel(ctx context.Context, runID uuid.UUID) (*types.TrainingRun, error) {
	const op = "Jobs.TrainingRun.Cancel"
	r.mu.Lock()
	cancel, ok := r.active[runID]
	r.mu.Unlock()
	if ok {
		cancel()
		r.log.Info("training run cancel requested", "run_id", runID)
		return r.Get(ctx, runID)
	}
	run, err := r.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Terminal() {
		return nil, domainagg.NewError(domainagg.CodePreconditionFailed, op, fmt.Sprintf("run already %s", run.Status), nil)
	}
	return nil, domainagg.NewError(domainagg.CodePreconditionFailed, op, "run is not executing in this process", nil)
}

func (r *Runner) Get(ctx context.Context, runID uuid.UUID) (*types.TrainingRun, error) {
	const op = "Jobs.TrainingRun.Get"
	run, err := r.deps.Runs.GetByID(dbctx.Context{Ctx: ctx}, runID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if run == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("training run not found: %s", runID), nil)
	}
	return run, nil
}

func (r *Runner) List(ctx context.Context, status string, limit int) ([]*types.TrainingRun, error) {
	runs, err := r.deps.Runs.List(dbctx.Context{Ctx: ctx}, status, limit)
	if err != nil {
		return nil, aggregates.MapError("Jobs.TrainingRun.List", err)
	}
	return runs, nil
}

// Reconcile re-runs the consume step of a partial_failure run and marks it succeeded.
func (r *Runner) Reconcile(ctx context.Context, runID uuid.UUID) (domainagg.ResolvePartialResult, error) {
	res, err := r.deps.Reconciler.ResolvePartial(ctx, runID)
	if err != nil {
		return res, err
	}
	r.log.Info("training run reconciled", "run_id", runID, "version", res.Version, "marked", res.Marked)
	return res, nil
}

// Active reports whether this process is executing a run.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active) > 0
}

// Wait blocks until every started run has finished.
func (r *Runner) Wait() { r.wg.Wait() }

// Shutdown cancels active runs and waits for them or for ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopBase()
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
