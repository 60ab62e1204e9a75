package feedback

import "time"

// Record is one rated chat turn. UsedForTraining flips to true once, when the
// record is consumed by a training run, and is never reset.
type Record struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserInput       string    `gorm:"column:user_input;type:text;not null" json:"user_input"`
	Response        string    `gorm:"column:response;type:text;not null" json:"response"`
	FeedbackScore   float64   `gorm:"column:feedback_score;not null;index:idx_feedback_selectable,priority:2" json:"feedback_score"`
	FeedbackComment *string   `gorm:"column:feedback_comment;type:text" json:"feedback_comment,omitempty"`
	IsHelpful       bool      `gorm:"column:is_helpful;not null;default:false" json:"is_helpful"`
	UsedForTraining bool      `gorm:"column:used_for_training;not null;default:false;index:idx_feedback_selectable,priority:1" json:"used_for_training"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (Record) TableName() string { return "feedback_record" }

// Stats summarises the feedback table for the admin surface.
type Stats struct {
	Total   int64 `json:"total"`
	Unused  int64 `json:"unused"`
	Used    int64 `json:"used"`
	Helpful int64 `json:"helpful"`
}
