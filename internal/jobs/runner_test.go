package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/wayfarer-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	"github.com/yungbote/wayfarer-backend/internal/data/repos/testutil"
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	jobtypes "github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/jobs"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

type env struct {
	db            *gorm.DB
	feedback      repos.FeedbackRepo
	runs          repos.TrainingRunRepo
	consumeRunner *aggtest.InjectedTxRunner
	runner        *jobs.Runner
}

func newEnv(t *testing.T, trainer training.Trainer) *env {
	t.Helper()
	db := testutil.FreshDB(t)
	log := testutil.Logger(t)
	e := &env{
		db:            db,
		feedback:      repos.NewFeedbackRepo(db, log),
		runs:          repos.NewTrainingRunRepo(db, log),
		consumeRunner: &aggtest.InjectedTxRunner{DB: db},
	}
	driver, err := training.NewDriver(training.DriverDeps{
		Log:      log,
		Selector: training.NewSelector(e.feedback, log),
		Trainer:  trainer,
		Registry: aggregates.NewModelRegistry(aggregates.ModelRegistryDeps{
			Base:     aggregates.BaseDeps{DB: db},
			Versions: repos.NewModelVersionRepo(db, log),
		}),
		Feedback: aggregates.NewFeedbackAggregate(aggregates.FeedbackAggregateDeps{
			Base:     aggregates.BaseDeps{DB: db, Runner: e.consumeRunner},
			Feedback: e.feedback,
		}),
	}, training.DefaultOptions())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	e.runner, err = jobs.NewRunner(jobs.RunnerDeps{
		Log:    log,
		Runs:   e.runs,
		Driver: driver,
		Reconciler: aggregates.NewTrainingRunAggregate(aggregates.TrainingRunAggregateDeps{
			Base:     aggregates.BaseDeps{DB: db},
			Runs:     e.runs,
			Feedback: e.feedback,
		}),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.runner.Shutdown(ctx)
	})
	return e
}

func (e *env) runToEnd(t *testing.T, in jobs.EnqueueInput) *types.TrainingRun {
	t.Helper()
	run, err := e.runner.Enqueue(context.Background(), in)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if run.Status != jobtypes.RunStatusQueued {
		t.Fatalf("enqueued status: %s", run.Status)
	}
	e.runner.Wait()
	got, err := e.runner.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return got
}

type trainerFunc = training.TrainerFunc

func okTrainer() training.Trainer {
	return trainerFunc(func(ctx context.Context, req training.TrainRequest) (*training.TrainResult, error) {
		return &training.TrainResult{ArtifactURI: "file:///m/" + req.Version, Metrics: map[string]float64{"loss": 0.1}}, nil
	})
}

func TestRunnerSucceeded(t *testing.T) {
	e := newEnv(t, okTrainer())
	rows := testutil.SeedFeedback(t, context.Background(), e.db, 5, 2, 5, 2, 5, 2, 5, 2, 5, 5)

	run := e.runToEnd(t, jobs.EnqueueInput{RequestedBy: "admin@example.com"})
	if run.Status != jobtypes.RunStatusSucceeded || run.Stage != string(training.StateDone) {
		t.Fatalf("run: status=%s stage=%s err=%s", run.Status, run.Stage, run.Error)
	}
	if run.Version == "" || run.StartedAt == nil || run.FinishedAt == nil || run.RequestedBy != "admin@example.com" {
		t.Fatalf("ledger columns: %+v", run)
	}
	var ids []uint64
	if err := json.Unmarshal(run.ExampleIDs, &ids); err != nil {
		t.Fatalf("example_ids: %v", err)
	}
	want := []uint64{rows[0].ID, rows[2].ID, rows[4].ID, rows[6].ID, rows[8].ID, rows[9].ID}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("example_ids: want %v got %v", want, ids)
	}
	var sum training.Summary
	if err := json.Unmarshal(run.Summary, &sum); err != nil || sum.TrainingExampleCount != 4 || sum.ValidationExampleCount != 2 {
		t.Fatalf("summary: %+v err=%v", sum, err)
	}
	if e.runner.Active() {
		t.Fatalf("runner still active")
	}
}

func TestRunnerNoData(t *testing.T) {
	e := newEnv(t, okTrainer())
	run := e.runToEnd(t, jobs.EnqueueInput{})
	if run.Status != jobtypes.RunStatusNoData || run.Version != "" {
		t.Fatalf("run: %+v", run)
	}
}

func TestRunnerOverrides(t *testing.T) {
	var got training.TrainRequest
	e := newEnv(t, trainerFunc(func(ctx context.Context, req training.TrainRequest) (*training.TrainResult, error) {
		got = req
		return &training.TrainResult{}, nil
	}))
	testutil.SeedFeedback(t, context.Background(), e.db, 3, 3, 3, 5)

	minScore, limit := 3.0, 2
	run := e.runToEnd(t, jobs.EnqueueInput{MinScore: &minScore, Limit: &limit, BaseModel: "tiny"})
	if run.Status != jobtypes.RunStatusSucceeded {
		t.Fatalf("run: %+v", run)
	}
	if got.BaseModel != "tiny" || len(got.Train)+len(got.Validation) != 2 {
		t.Fatalf("request: base=%s n=%d", got.BaseModel, len(got.Train)+len(got.Validation))
	}
}

func TestRunnerRejectsBadOverrides(t *testing.T) {
	e := newEnv(t, okTrainer())
	zero := 0
	if _, err := e.runner.Enqueue(context.Background(), jobs.EnqueueInput{Limit: &zero}); !errors.Is(err, training.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	one := 1.0
	if _, err := e.runner.Enqueue(context.Background(), jobs.EnqueueInput{ValidationFraction: &one}); !errors.Is(err, training.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	list, _ := e.runner.List(context.Background(), "", 10)
	if len(list) != 0 {
		t.Fatalf("no run may be recorded, got %d", len(list))
	}
}

func TestRunnerTrainingFailure(t *testing.T) {
	e := newEnv(t, trainerFunc(func(ctx context.Context, req training.TrainRequest) (*training.TrainResult, error) {
		return nil, errors.New("gpu on fire")
	}))
	testutil.SeedFeedback(t, context.Background(), e.db, 5, 5)

	run := e.runToEnd(t, jobs.EnqueueInput{})
	if run.Status != jobtypes.RunStatusFailed || run.ErrorKind != string(training.KindTraining) || run.Stage != string(training.StateTraining) {
		t.Fatalf("run: status=%s kind=%s stage=%s", run.Status, run.ErrorKind, run.Stage)
	}
}

func TestRunnerPanicMarksFailed(t *testing.T) {
	e := newEnv(t, trainerFunc(func(ctx context.Context, req training.TrainRequest) (*training.TrainResult, error) {
		panic("trainer bug")
	}))
	testutil.SeedFeedback(t, context.Background(), e.db, 5, 5)

	run := e.runToEnd(t, jobs.EnqueueInput{})
	if run.Status != jobtypes.RunStatusFailed || run.ErrorKind != string(training.KindTraining) {
		t.Fatalf("run: %+v", run)
	}
}

func TestRunnerCancelAndSingleRun(t *testing.T) {
	started := make(chan struct{})
	e := newEnv(t, trainerFunc(func(ctx context.Context, req training.TrainRequest) (*training.TrainResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	testutil.SeedFeedback(t, context.Background(), e.db, 5, 5, 5)
	ctx := context.Background()

	run, err := e.runner.Enqueue(ctx, jobs.EnqueueInput{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-started
	if _, err := e.runner.Enqueue(ctx, jobs.EnqueueInput{}); !errors.Is(err, training.ErrRunInProgress) {
		t.Fatalf("want ErrRunInProgress, got %v", err)
	}
	if _, err := e.runner.Cancel(ctx, run.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	e.runner.Wait()

	got, _ := e.runner.Get(ctx, run.ID)
	if got.Status != jobtypes.RunStatusCanceled || got.ErrorKind != string(training.KindCanceled) {
		t.Fatalf("run: status=%s kind=%s", got.Status, got.ErrorKind)
	}
	stats, _ := e.feedback.Stats(dbctx.Context{Ctx: ctx})
	if stats.Used != 0 {
		t.Fatalf("canceled run consumed feedback: %+v", stats)
	}

	if _, err := e.runner.Cancel(ctx, run.ID); !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("cancel finished run: want precondition_failed, got %v", err)
	}
	if _, err := e.runner.Cancel(ctx, uuid.New()); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("cancel unknown run: want not_found, got %v", err)
	}
}

func TestRunnerPartialFailureThenReconcile(t *testing.T) {
	e := newEnv(t, okTrainer())
	e.consumeRunner.FailCommit = errors.New("connection reset")
	e.consumeRunner.FailOnCall = 1
	testutil.SeedFeedback(t, context.Background(), e.db, 5, 5, 5)
	ctx := context.Background()

	run := e.runToEnd(t, jobs.EnqueueInput{})
	if run.Status != jobtypes.RunStatusPartialFailure || run.Version == "" || len(run.ExampleIDs) == 0 {
		t.Fatalf("run: %+v", run)
	}
	stats, _ := e.feedback.Stats(dbctx.Context{Ctx: ctx})
	if stats.Used != 0 {
		t.Fatalf("failed consume must not mark rows: %+v", stats)
	}

	res, err := e.runner.Reconcile(ctx, run.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Marked != 3 || res.Version != run.Version {
		t.Fatalf("reconcile result: %+v", res)
	}
	got, _ := e.runner.Get(ctx, run.ID)
	if got.Status != jobtypes.RunStatusSucceeded {
		t.Fatalf("status after reconcile: %s", got.Status)
	}
	if _, err := e.runner.Reconcile(ctx, run.ID); !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("second reconcile: want precondition_failed, got %v", err)
	}
}

func TestRunnerRecoverInterrupted(t *testing.T) {
	e := newEnv(t, okTrainer())
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	for _, status := range []string{jobtypes.RunStatusQueued, jobtypes.RunStatusRunning, jobtypes.RunStatusSucceeded} {
		if _, err := e.runs.Create(dbc, &types.TrainingRun{Status: status, Stage: "idle", CreatedAt: time.Now(), UpdatedAt: time.Now()}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	n, err := e.runner.RecoverInterrupted(ctx)
	if err != nil || n != 2 {
		t.Fatalf("RecoverInterrupted: n=%d err=%v", n, err)
	}
	failed, _ := e.runner.List(ctx, jobtypes.RunStatusFailed, 10)
	if len(failed) != 2 || failed[0].ErrorKind != "interrupted" {
		t.Fatalf("failed runs: %d", len(failed))
	}
}

func TestRunnerShutdownRefusesNewRuns(t *testing.T) {
	e := newEnv(t, okTrainer())
	if err := e.runner.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := e.runner.Enqueue(context.Background(), jobs.EnqueueInput{}); err == nil {
		t.Fatalf("expected error after shutdown")
	}
}
