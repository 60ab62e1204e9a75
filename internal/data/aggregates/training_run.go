package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
)

type TrainingRunAggregateDeps struct {
	Base BaseDeps

	Runs     repos.TrainingRunRepo
	Feedback repos.FeedbackRepo
}

type trainingRunAggregate struct {
	deps TrainingRunAggregateDeps
}

func NewTrainingRunAggregate(deps TrainingRunAggregateDeps) domainagg.TrainingRunAggregate {
	deps.Base = deps.Base.withDefaults()
	return &trainingRunAggregate{deps: deps}
}

func (a *trainingRunAggregate) Contract() domainagg.Contract {
	return domainagg.TrainingRunContract
}

func (a *trainingRunAggregate) ResolvePartial(ctx context.Context, runID uuid.UUID) (domainagg.ResolvePartialResult, error) {
	const op = "Jobs.TrainingRun.ResolvePartial"
	out := domainagg.ResolvePartialResult{RunID: runID}
	if runID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing run id", nil)
	}
	if a.deps.Runs == nil || a.deps.Feedback == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "training run aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		run, err := a.deps.Runs.GetByID(dbc, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("training run not found: %s", runID), nil)
		}
		if run.Status != jobs.RunStatusPartialFailure {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op,
				fmt.Sprintf("run status is %q, only %q runs can be reconciled", run.Status, jobs.RunStatusPartialFailure), nil)
		}
		ids, err := decodeExampleIDs(run)
		if err != nil {
			return InvariantError(err.Error())
		}
		marked, err := a.deps.Feedback.MarkUsed(dbc, ids)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, run.TableName(), runID,
			[]string{jobs.RunStatusPartialFailure},
			map[string]any{
				"status":      jobs.RunStatusSucceeded,
				"stage":       "done",
				"error":       "",
				"error_kind":  "",
				"finished_at": now,
				"updated_at":  now,
			})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "training run changed during reconcile"); err != nil {
			return err
		}
		out.Version = run.Version
		out.Marked = marked
		out.Total = len(ids)
		return nil
	})
	return out, err
}

func decodeExampleIDs(run *types.TrainingRun) ([]uint64, error) {
	if len(run.ExampleIDs) == 0 {
		return nil, fmt.Errorf("training run %s has no recorded example ids", run.ID)
	}
	var ids []uint64
	if err := json.Unmarshal(run.ExampleIDs, &ids); err != nil {
		return nil, fmt.Errorf("decode example_ids: %w", err)
	}
	return ids, nil
}
