package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/observability"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

type FeedbackInput struct {
	UserInput string
	Response  string
	Score     float64
	Comment   *string
	IsHelpful bool
}

// FeedbackService is the write path for rated chat turns. It never touches
// training state, so a broken trainer cannot block feedback submission.
type FeedbackService interface {
	SaveFeedback(ctx context.Context, in FeedbackInput) (*types.FeedbackRecord, error)
	Stats(ctx context.Context) (types.FeedbackStats, error)
}

type feedbackService struct {
	log     *logger.Logger
	repo    repos.FeedbackRepo
	metrics *observability.Metrics
}

func NewFeedbackService(baseLog *logger.Logger, repo repos.FeedbackRepo, metrics *observability.Metrics) FeedbackService {
	return &feedbackService{
		log:     baseLog.With("service", "FeedbackService"),
		repo:    repo,
		metrics: metrics,
	}
}

func (s *feedbackService) SaveFeedback(ctx context.Context, in FeedbackInput) (*types.FeedbackRecord, error) {
	const op = "Feedback.Save"
	if strings.TrimSpace(in.UserInput) == "" || strings.TrimSpace(in.Response) == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "user_input and response are required", nil)
	}
	if math.IsNaN(in.Score) || math.IsInf(in.Score, 0) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("feedback_score must be finite, got %v", in.Score), nil)
	}
	comment := in.Comment
	if comment != nil && strings.TrimSpace(*comment) == "" {
		comment = nil
	}
	rows, err := s.repo.Create(dbctx.Context{Ctx: ctx}, []*types.FeedbackRecord{{
		UserInput:       in.UserInput,
		Response:        in.Response,
		FeedbackScore:   in.Score,
		FeedbackComment: comment,
		IsHelpful:       in.IsHelpful,
		CreatedAt:       time.Now().UTC(),
	}})
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if len(rows) != 1 {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "feedback insert returned no row", nil)
	}
	s.metrics.IncFeedback(in.IsHelpful)
	s.log.Debug("feedback saved",
		"feedback_id", rows[0].ID,
		"score", in.Score,
		"is_helpful", in.IsHelpful,
		"user_input", in.UserInput,
	)
	return rows[0], nil
}

func (s *feedbackService) Stats(ctx context.Context) (types.FeedbackStats, error) {
	stats, err := s.repo.Stats(dbctx.Context{Ctx: ctx})
	if err != nil {
		return types.FeedbackStats{}, aggregates.MapError("Feedback.Stats", err)
	}
	return stats, nil
}
