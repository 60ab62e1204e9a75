package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunStatusQueued         = "queued"
	RunStatusRunning        = "running"
	RunStatusSucceeded      = "succeeded"
	RunStatusNoData         = "no_data"
	RunStatusFailed         = "failed"
	RunStatusPartialFailure = "partial_failure"
	RunStatusCanceled       = "canceled"
)

// TrainingRun is the ledger row for one background pipeline run.
// ExampleIDs is kept so a partial failure can be reconciled later.
type TrainingRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;not null" json:"stage"`
	ErrorKind   string         `gorm:"column:error_kind" json:"error_kind,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Version     string         `gorm:"column:version;index" json:"version,omitempty"`
	RequestedBy string         `gorm:"column:requested_by" json:"requested_by,omitempty"`
	ExampleIDs  datatypes.JSON `gorm:"column:example_ids" json:"example_ids,omitempty"`
	Summary     datatypes.JSON `gorm:"column:summary" json:"summary,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (TrainingRun) TableName() string { return "training_run" }

func (r *TrainingRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the run can no longer change status on its own.
func (r *TrainingRun) Terminal() bool {
	switch r.Status {
	case RunStatusSucceeded, RunStatusNoData, RunStatusFailed, RunStatusPartialFailure, RunStatusCanceled:
		return true
	default:
		return false
	}
}
