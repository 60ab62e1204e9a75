package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

// ModelService reads the model registry and lets an operator roll the active
// version back or forward. Promotion only happens through a training run.
type ModelService interface {
	List(ctx context.Context, limit int) ([]*types.ModelVersion, error)
	GetActive(ctx context.Context) (*types.ModelVersion, error)
	GetByVersion(ctx context.Context, version string) (*types.ModelVersion, error)
	Activate(ctx context.Context, version string) (*types.ModelVersion, error)
}

type modelService struct {
	log      *logger.Logger
	versions repos.ModelVersionRepo
	registry domainagg.ModelRegistryAggregate
}

func NewModelService(baseLog *logger.Logger, versions repos.ModelVersionRepo, registry domainagg.ModelRegistryAggregate) ModelService {
	return &modelService{
		log:      baseLog.With("service", "ModelService"),
		versions: versions,
		registry: registry,
	}
}

func (s *modelService) List(ctx context.Context, limit int) ([]*types.ModelVersion, error) {
	rows, err := s.versions.List(dbctx.Context{Ctx: ctx}, limit)
	if err != nil {
		return nil, aggregates.MapError("Models.List", err)
	}
	return rows, nil
}

// GetActive returns nil without error when nothing has been promoted yet.
func (s *modelService) GetActive(ctx context.Context) (*types.ModelVersion, error) {
	row, err := s.versions.GetActive(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, aggregates.MapError("Models.GetActive", err)
	}
	return row, nil
}

func (s *modelService) GetByVersion(ctx context.Context, version string) (*types.ModelVersion, error) {
	const op = "Models.GetByVersion"
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing version", nil)
	}
	row, err := s.versions.GetByVersion(dbctx.Context{Ctx: ctx}, version)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if row == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("model version not found: %s", version), nil)
	}
	return row, nil
}

func (s *modelService) Activate(ctx context.Context, version string) (*types.ModelVersion, error) {
	version = strings.TrimSpace(version)
	if err := s.registry.Activate(ctx, version); err != nil {
		return nil, err
	}
	s.log.Info("model version activated", "version", version)
	return s.GetByVersion(ctx, version)
}
