package aggregates_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	"github.com/yungbote/wayfarer-backend/internal/data/repos/testutil"
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"gorm.io/datatypes"
)

func TestFeedbackAggregateConsumeIsIdempotent(t *testing.T) {
	db := testutil.FreshDB(t)
	ctx := context.Background()
	fb := repos.NewFeedbackRepo(db, testutil.Logger(t))
	agg := aggregates.NewFeedbackAggregate(aggregates.FeedbackAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db},
		Feedback: fb,
	})
	rows := testutil.SeedFeedback(t, ctx, db, 5, 5, 2)
	ids := testutil.IDs(rows[:2])

	n, err := agg.Consume(ctx, ids)
	if err != nil || n != 2 {
		t.Fatalf("Consume: n=%d err=%v", n, err)
	}
	n, err = agg.Consume(ctx, ids)
	if err != nil || n != 0 {
		t.Fatalf("Consume repeat: n=%d err=%v", n, err)
	}
	if n, err := agg.Consume(ctx, nil); err != nil || n != 0 {
		t.Fatalf("Consume empty: n=%d err=%v", n, err)
	}
	stats, err := fb.Stats(dbctx.Context{Ctx: ctx})
	if err != nil || stats.Used != 2 || stats.Unused != 1 {
		t.Fatalf("Stats: %+v err=%v", stats, err)
	}
}

func TestTrainingRunResolvePartial(t *testing.T) {
	db := testutil.FreshDB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	fb := repos.NewFeedbackRepo(db, testutil.Logger(t))
	runs := repos.NewTrainingRunRepo(db, testutil.Logger(t))
	agg := aggregates.NewTrainingRunAggregate(aggregates.TrainingRunAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db},
		Runs:     runs,
		Feedback: fb,
	})

	rows := testutil.SeedFeedback(t, ctx, db, 5, 5, 5)
	// one of the three was consumed before the failure
	if _, err := fb.MarkUsed(dbc, []uint64{rows[0].ID}); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	idsJSON, _ := json.Marshal(testutil.IDs(rows))
	run := &types.TrainingRun{
		Status:     jobs.RunStatusPartialFailure,
		Stage:      "consuming",
		ErrorKind:  "partial_failure",
		Error:      "consume failed",
		Version:    "v20240101_000000_abcdef",
		ExampleIDs: datatypes.JSON(idsJSON),
	}
	if _, err := runs.Create(dbc, run); err != nil {
		t.Fatalf("Create run: %v", err)
	}

	res, err := agg.ResolvePartial(ctx, run.ID)
	if err != nil {
		t.Fatalf("ResolvePartial: %v", err)
	}
	if res.Marked != 2 || res.Total != 3 || res.Version != run.Version {
		t.Fatalf("ResolvePartial result: %+v", res)
	}
	got, _ := runs.GetByID(dbc, run.ID)
	if got.Status != jobs.RunStatusSucceeded || got.Error != "" || got.FinishedAt == nil {
		t.Fatalf("run after reconcile: %+v", got)
	}
	stats, _ := fb.Stats(dbc)
	if stats.Unused != 0 {
		t.Fatalf("all examples must be consumed, stats=%+v", stats)
	}

	_, err = agg.ResolvePartial(ctx, run.ID)
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("second reconcile: want precondition_failed got %v", err)
	}
}
