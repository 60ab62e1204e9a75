package domain

import (
	"github.com/yungbote/wayfarer-backend/internal/domain/feedback"
	"github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/domain/models"
)

type FeedbackRecord = feedback.Record
type FeedbackStats = feedback.Stats
type ModelVersion = models.Version
type TrainingRun = jobs.TrainingRun
type TrainingLock = jobs.TrainingLock

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&feedback.Record{},
		&models.Version{},
		&jobs.TrainingRun{},
		&jobs.TrainingLock{},
	}
}
