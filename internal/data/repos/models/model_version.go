package models

import (
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/wayfarer-backend/internal/domain"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

type ModelVersionRepo interface {
	Create(dbc dbctx.Context, row *types.ModelVersion) (*types.ModelVersion, error)
	GetActive(dbc dbctx.Context) (*types.ModelVersion, error)
	GetByVersion(dbc dbctx.Context, version string) (*types.ModelVersion, error)
	List(dbc dbctx.Context, limit int) ([]*types.ModelVersion, error)
	CountActive(dbc dbctx.Context) (int64, error)
	// DeactivateAll clears is_active on whichever row holds it and returns the number of rows changed.
	DeactivateAll(dbc dbctx.Context) (int64, error)
	// ActivateVersion sets is_active on one existing, currently inactive row.
	ActivateVersion(dbc dbctx.Context, version string) (int64, error)
}

type modelVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelVersionRepo(db *gorm.DB, baseLog *logger.Logger) ModelVersionRepo {
	return &modelVersionRepo{
		db:  db,
		log: baseLog.With("repo", "ModelVersionRepo"),
	}
}

func (r *modelVersionRepo) Create(dbc dbctx.Context, row *types.ModelVersion) (*types.ModelVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *modelVersionRepo) GetActive(dbc dbctx.Context) (*types.ModelVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.ModelVersion
	if err := transaction.WithContext(dbc.Ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *modelVersionRepo) GetByVersion(dbc dbctx.Context, version string) (*types.ModelVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, nil
	}
	var rows []*types.ModelVersion
	if err := transaction.WithContext(dbc.Ctx).
		Where("version = ?", version).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *modelVersionRepo) List(dbc dbctx.Context, limit int) ([]*types.ModelVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*types.ModelVersion
	if err := transaction.WithContext(dbc.Ctx).
		Order("created_at DESC").
		Order("version DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *modelVersionRepo) CountActive(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ModelVersion{}).
		Where("is_active = ?", true).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *modelVersionRepo) DeactivateAll(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ModelVersion{}).
		Where("is_active = ?", true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *modelVersionRepo) ActivateVersion(dbc dbctx.Context, version string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ModelVersion{}).
		Where("version = ? AND is_active = ?", strings.TrimSpace(version), false).
		Update("is_active", true)
	return res.RowsAffected, res.Error
}
