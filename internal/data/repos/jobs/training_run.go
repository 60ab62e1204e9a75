package jobs

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/wayfarer-backend/internal/domain"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

type TrainingRunRepo interface {
	Create(dbc dbctx.Context, run *types.TrainingRun) (*types.TrainingRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingRun, error)
	List(dbc dbctx.Context, status string, limit int) ([]*types.TrainingRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	// UpdateWhereStatus applies updates to every run currently in one of statuses.
	UpdateWhereStatus(dbc dbctx.Context, statuses []string, updates map[string]interface{}) (int64, error)
}

type trainingRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrainingRunRepo(db *gorm.DB, baseLog *logger.Logger) TrainingRunRepo {
	return &trainingRunRepo{
		db:  db,
		log: baseLog.With("repo", "TrainingRunRepo"),
	}
}

func (r *trainingRunRepo) Create(dbc dbctx.Context, run *types.TrainingRun) (*types.TrainingRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *trainingRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.TrainingRun
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *trainingRunRepo) List(dbc dbctx.Context, status string, limit int) ([]*types.TrainingRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.TrainingRun{})
	if s := strings.TrimSpace(status); s != "" {
		q = q.Where("status = ?", s)
	}
	var out []*types.TrainingRun
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.TrainingRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *trainingRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&types.TrainingRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *trainingRunRepo) UpdateWhereStatus(dbc dbctx.Context, statuses []string, updates map[string]interface{}) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(statuses) == 0 || len(updates) == 0 {
		return 0, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.TrainingRun{}).
		Where("status IN ?", statuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}
