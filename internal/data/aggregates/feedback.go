package aggregates

import (
	"context"

	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
)

type FeedbackAggregateDeps struct {
	Base BaseDeps

	Feedback repos.FeedbackRepo
}

type feedbackAggregate struct {
	deps FeedbackAggregateDeps
}

func NewFeedbackAggregate(deps FeedbackAggregateDeps) domainagg.FeedbackAggregate {
	deps.Base = deps.Base.withDefaults()
	return &feedbackAggregate{deps: deps}
}

func (a *feedbackAggregate) Contract() domainagg.Contract {
	return domainagg.FeedbackContract
}

// Consume marks ids as used for training in a single transaction.
func (a *feedbackAggregate) Consume(ctx context.Context, ids []uint64) (int64, error) {
	const op = "Feedback.Consume"
	if len(ids) == 0 {
		return 0, nil
	}
	if a.deps.Feedback == nil {
		return 0, domainagg.NewError(domainagg.CodeInternal, op, "feedback repo not configured", nil)
	}
	var marked int64
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		n, err := a.deps.Feedback.MarkUsed(dbc, ids)
		if err != nil {
			return err
		}
		marked = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}
