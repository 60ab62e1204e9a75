package jobs

import "time"

// TrainingLockID is the key of the single lease row.
const TrainingLockID = 1

// TrainingLock is the store-wide lease that keeps training runs from
// overlapping across processes. An empty Token means the lease is free.
type TrainingLock struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Token     string    `gorm:"column:token;not null;default:''" json:"-"`
	Holder    string    `gorm:"column:holder;not null;default:''" json:"holder,omitempty"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (TrainingLock) TableName() string { return "training_lock" }
