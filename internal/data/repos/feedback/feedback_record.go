package feedback

import (
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/wayfarer-backend/internal/domain"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

// markUsedBatch keeps IN lists well under driver bind-parameter limits.
const markUsedBatch = 500

type FeedbackRepo interface {
	Create(dbc dbctx.Context, rows []*types.FeedbackRecord) ([]*types.FeedbackRecord, error)
	GetByIDs(dbc dbctx.Context, ids []uint64) ([]*types.FeedbackRecord, error)
	ListSelectable(dbc dbctx.Context, minScore float64, limit int) ([]*types.FeedbackRecord, error)
	MarkUsed(dbc dbctx.Context, ids []uint64) (int64, error)
	Stats(dbc dbctx.Context) (types.FeedbackStats, error)
}

type feedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackRepo {
	return &feedbackRepo{
		db:  db,
		log: baseLog.With("repo", "FeedbackRepo"),
	}
}

func (r *feedbackRepo) Create(dbc dbctx.Context, rows []*types.FeedbackRecord) ([]*types.FeedbackRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.FeedbackRecord{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		// the flag is owned by MarkUsed; new feedback always starts unconsumed
		row.UsedForTraining = false
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *feedbackRepo) GetByIDs(dbc dbctx.Context, ids []uint64) ([]*types.FeedbackRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FeedbackRecord
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListSelectable returns unconsumed records scoring at least minScore, oldest
// first. A non-positive limit returns nothing.
func (r *feedbackRepo) ListSelectable(dbc dbctx.Context, minScore float64, limit int) ([]*types.FeedbackRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FeedbackRecord
	if limit <= 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("used_for_training = ? AND feedback_score >= ?", false, minScore).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkUsed flips used_for_training for the given ids and returns how many
// rows changed. Already-consumed and unknown ids are skipped, so repeating a
// call is a no-op.
func (r *feedbackRepo) MarkUsed(dbc dbctx.Context, ids []uint64) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return 0, nil
	}
	var total int64
	for start := 0; start < len(ids); start += markUsedBatch {
		end := start + markUsedBatch
		if end > len(ids) {
			end = len(ids)
		}
		res := transaction.WithContext(dbc.Ctx).
			Model(&types.FeedbackRecord{}).
			Where("id IN ? AND used_for_training = ?", ids[start:end], false).
			Update("used_for_training", true)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (r *feedbackRepo) Stats(dbc dbctx.Context) (types.FeedbackStats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row struct {
		Total   int64
		Used    int64
		Helpful int64
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.FeedbackRecord{}).
		Select(`COUNT(*) AS total,
      COALESCE(SUM(CASE WHEN used_for_training THEN 1 ELSE 0 END), 0) AS used,
      COALESCE(SUM(CASE WHEN is_helpful THEN 1 ELSE 0 END), 0) AS helpful`).
		Scan(&row).Error
	if err != nil {
		return types.FeedbackStats{}, err
	}
	return types.FeedbackStats{
		Total:   row.Total,
		Used:    row.Used,
		Unused:  row.Total - row.Used,
		Helpful: row.Helpful,
	}, nil
}
