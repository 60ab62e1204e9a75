package repos

import (
	"github.com/yungbote/wayfarer-backend/internal/data/repos/feedback"
	"github.com/yungbote/wayfarer-backend/internal/data/repos/jobs"
	"github.com/yungbote/wayfarer-backend/internal/data/repos/models"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type FeedbackRepo = feedback.FeedbackRepo
type ModelVersionRepo = models.ModelVersionRepo
type TrainingRunRepo = jobs.TrainingRunRepo

func NewFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackRepo {
	return feedback.NewFeedbackRepo(db, baseLog)
}

func NewModelVersionRepo(db *gorm.DB, baseLog *logger.Logger) ModelVersionRepo {
	return models.NewModelVersionRepo(db, baseLog)
}

func NewTrainingRunRepo(db *gorm.DB, baseLog *logger.Logger) TrainingRunRepo {
	return jobs.NewTrainingRunRepo(db, baseLog)
}
