package training

import (
	"context"
	"fmt"
	"math"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

const (
	DefaultMinScore = 4.0
	DefaultLimit    = 1000
)

// Selector turns unconsumed, well-rated feedback into examples. It never writes.
type Selector struct {
	feedback repos.FeedbackRepo
	log      *logger.Logger
}

func NewSelector(feedback repos.FeedbackRepo, log *logger.Logger) *Selector {
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{feedback: feedback, log: log.With("component", "TrainingSelector")}
}

// Select returns at most limit unconsumed examples scoring at least minScore,
// in creation order.
func (s *Selector) Select(ctx context.Context, minScore float64, limit int) ([]Example, error) {
	if limit <= 0 {
		return nil, newError(KindValidation, StateSelecting, fmt.Errorf("limit must be > 0, got %d", limit))
	}
	if math.IsNaN(minScore) || math.IsInf(minScore, 0) {
		return nil, newError(KindValidation, StateSelecting, fmt.Errorf("min score must be finite"))
	}
	rows, err := s.feedback.ListSelectable(dbctx.Context{Ctx: ctx}, minScore, limit)
	if err != nil {
		return nil, newError(KindStoreUnavailable, StateSelecting, aggregates.MapError("Training.Select", err))
	}
	out := make([]Example, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		out = append(out, exampleFromRecord(r))
	}
	s.log.Debug("examples selected", "min_score", minScore, "limit", limit, "count", len(out))
	return out, nil
}
