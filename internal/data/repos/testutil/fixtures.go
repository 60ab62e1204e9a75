package testutil

import (
	"context"
	"testing"
	"time"

	types "github.com/yungbote/wayfarer-backend/internal/domain"
	"gorm.io/gorm"
)

// SeedFeedback inserts one record per score, in order, and returns them with ids set.
func SeedFeedback(tb testing.TB, ctx context.Context, tx *gorm.DB, scores ...float64) []*types.FeedbackRecord {
	tb.Helper()
	out := make([]*types.FeedbackRecord, 0, len(scores))
	base := time.Now().UTC().Add(-time.Hour)
	for i, s := range scores {
		rec := &types.FeedbackRecord{
			UserInput:     "Find me a flight to Lisbon",
			Response:      "Here are three options departing Friday",
			FeedbackScore: s,
			IsHelpful:     s >= 4,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
		if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
			tb.Fatalf("seed feedback: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func SeedUsedFeedback(tb testing.TB, ctx context.Context, tx *gorm.DB, score float64) *types.FeedbackRecord {
	tb.Helper()
	rec := SeedFeedback(tb, ctx, tx, score)[0]
	if err := tx.WithContext(ctx).Model(rec).Update("used_for_training", true).Error; err != nil {
		tb.Fatalf("seed used feedback: %v", err)
	}
	rec.UsedForTraining = true
	return rec
}

func SeedModelVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, version string, active bool) *types.ModelVersion {
	tb.Helper()
	mv := &types.ModelVersion{
		Version:            version,
		BaseModel:          "baseline",
		TrainingDataCount:  1,
		PerformanceMetrics: []byte(`{}`),
		IsActive:           active,
		CreatedAt:          time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(mv).Error; err != nil {
		tb.Fatalf("seed model version: %v", err)
	}
	return mv
}

func IDs(rows []*types.FeedbackRecord) []uint64 {
	out := make([]uint64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
