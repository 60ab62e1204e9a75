package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/domain/models"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
)

type ModelRegistryDeps struct {
	Base BaseDeps

	Versions repos.ModelVersionRepo
}

type modelRegistry struct {
	deps ModelRegistryDeps
}

func NewModelRegistry(deps ModelRegistryDeps) domainagg.ModelRegistryAggregate {
	deps.Base = deps.Base.withDefaults()
	return &modelRegistry{deps: deps}
}

func (a *modelRegistry) Contract() domainagg.Contract {
	return domainagg.ModelRegistryContract
}

// Promote records a new version as the active model. The previous holder is
// deactivated in the same transaction; on any failure nothing changes.
func (a *modelRegistry) Promote(ctx context.Context, in domainagg.PromoteInput) (uuid.UUID, error) {
	const op = "Models.Registry.Promote"
	version := strings.TrimSpace(in.Version)
	if version == "" {
		return uuid.Nil, domainagg.NewError(domainagg.CodeValidation, op, "missing version", nil)
	}
	if in.TrainingCount < 0 || in.ValidationCount < 0 {
		return uuid.Nil, domainagg.NewError(domainagg.CodeValidation, op, "example counts must be >= 0", nil)
	}
	if a.deps.Versions == nil {
		return uuid.Nil, domainagg.NewError(domainagg.CodeInternal, op, "model version repo not configured", nil)
	}
	metrics, err := models.EncodeMetrics(in.Metrics)
	if err != nil {
		return uuid.Nil, domainagg.NewError(domainagg.CodeValidation, op, "invalid metrics", err)
	}
	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	id := uuid.New()
	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		prev, err := a.deps.Versions.DeactivateAll(dbc)
		if err != nil {
			return err
		}
		row := &types.ModelVersion{
			ID:                  id,
			Version:             version,
			BaseModel:           strings.TrimSpace(in.BaseModel),
			ArtifactURI:         strings.TrimSpace(in.ArtifactURI),
			TrainingDataCount:   in.TrainingCount,
			ValidationDataCount: in.ValidationCount,
			PerformanceMetrics:  metrics,
			IsActive:            true,
			CreatedAt:           createdAt,
		}
		if _, err := a.deps.Versions.Create(dbc, row); err != nil {
			return err
		}
		if err := a.requireSingleActive(dbc); err != nil {
			return err
		}
		a.deps.Base.Log.Debug("model promoted", "version", version, "deactivated", prev)
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Activate makes an existing version the active model, e.g. to roll back.
func (a *modelRegistry) Activate(ctx context.Context, version string) error {
	const op = "Models.Registry.Activate"
	version = strings.TrimSpace(version)
	if version == "" {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing version", nil)
	}
	if a.deps.Versions == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "model version repo not configured", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		row, err := a.deps.Versions.GetByVersion(dbc, version)
		if err != nil {
			return err
		}
		if row == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("model version not found: %s", version), nil)
		}
		if row.IsActive {
			return nil
		}
		if _, err := a.deps.Versions.DeactivateAll(dbc); err != nil {
			return err
		}
		n, err := a.deps.Versions.ActivateVersion(dbc, version)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(n == 1, "model version changed during activation"); err != nil {
			return err
		}
		return a.requireSingleActive(dbc)
	})
}

func (a *modelRegistry) requireSingleActive(dbc dbctx.Context) error {
	n, err := a.deps.Versions.CountActive(dbc)
	if err != nil {
		return err
	}
	if n != 1 {
		return InvariantError(fmt.Sprintf("expected exactly one active model version, found %d", n))
	}
	return nil
}
