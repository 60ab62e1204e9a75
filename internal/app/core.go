package app

import (
	"context"
	"fmt"

	"github.com/yungbote/wayfarer-backend/internal/clients/redis"
	"github.com/yungbote/wayfarer-backend/internal/clients/trainer"
	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/data/db"
	"github.com/yungbote/wayfarer-backend/internal/data/repos"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/training"
	"github.com/yungbote/wayfarer-backend/internal/training/baseline"
)

type Repos struct {
	Feedback repos.FeedbackRepo
	Versions repos.ModelVersionRepo
	Runs     repos.TrainingRunRepo
}

type Aggregates struct {
	Registry    domainagg.ModelRegistryAggregate
	Feedback    domainagg.FeedbackAggregate
	TrainingRun domainagg.TrainingRunAggregate
}

// Core is the store plus the training pipeline, shared by the server and the CLI.
type Core struct {
	Log        *logger.Logger
	Cfg        Config
	DB         *db.Service
	Repos      Repos
	Aggregates Aggregates
	Driver     *training.Driver

	closers []func() error
}

func NewCore(ctx context.Context, log *logger.Logger, cfg Config) (*Core, error) {
	c := &Core{Log: log, Cfg: cfg}

	svc, err := db.NewService(db.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		SlowQuery:    cfg.Database.SlowQuery,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	c.DB = svc
	c.closers = append(c.closers, svc.Close)
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		c.Close()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}

	c.Repos = wireRepos(c)
	c.Aggregates = wireAggregates(c)

	tr, err := wireTrainer(ctx, c)
	if err != nil {
		c.Close()
		return nil, err
	}
	locker, err := wireLocker(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	driver, err := training.NewDriver(training.DriverDeps{
		Log:      log,
		Selector: training.NewSelector(c.Repos.Feedback, log),
		Trainer:  tr,
		Registry: c.Aggregates.Registry,
		Feedback: c.Aggregates.Feedback,
		Locker:   locker,
	}, cfg.Options())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init training driver: %w", err)
	}
	c.Driver = driver
	return c, nil
}

func wireRepos(c *Core) Repos {
	c.Log.Info("Wiring repos...")
	gdb := c.DB.DB()
	return Repos{
		Feedback: repos.NewFeedbackRepo(gdb, c.Log),
		Versions: repos.NewModelVersionRepo(gdb, c.Log),
		Runs:     repos.NewTrainingRunRepo(gdb, c.Log),
	}
}

func wireAggregates(c *Core) Aggregates {
	c.Log.Info("Wiring aggregates...")
	base := aggregates.BaseDeps{
		DB:    c.DB.DB(),
		Log:   c.Log,
		Hooks: aggregates.NewLogHooks(c.Log),
	}
	return Aggregates{
		Registry: aggregates.NewModelRegistry(aggregates.ModelRegistryDeps{Base: base, Versions: c.Repos.Versions}),
		Feedback: aggregates.NewFeedbackAggregate(aggregates.FeedbackAggregateDeps{Base: base, Feedback: c.Repos.Feedback}),
		TrainingRun: aggregates.NewTrainingRunAggregate(aggregates.TrainingRunAggregateDeps{
			Base:     base,
			Runs:     c.Repos.Runs,
			Feedback: c.Repos.Feedback,
		}),
	}
}

func wireTrainer(ctx context.Context, c *Core) (training.Trainer, error) {
	switch c.Cfg.Trainer.Mode {
	case TrainerModeHTTP:
		client, err := trainer.New(c.Log, trainer.Config{
			BaseURL:    c.Cfg.Trainer.URL,
			APIKey:     c.Cfg.Trainer.APIKey,
			MaxRetries: c.Cfg.Trainer.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("init trainer client: %w", err)
		}
		return client, nil
	default:
		store, closeStore, err := resolveArtifactStore(ctx, c.Log, c.Cfg.Artifacts)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, closeStore)
		return baseline.New(c.Log, store), nil
	}
}

// wireLocker always serialises runs in-process and through the training_lock
// lease in the store, so the server and CLI on one database exclude each
// other. Redis, when configured, is an extra lease on top.
func wireLocker(c *Core) (training.Locker, error) {
	chain := training.ChainLocker{
		&training.ProcessLocker{},
		aggregates.NewTrainingLease(aggregates.TrainingLeaseDeps{
			Base: aggregates.BaseDeps{DB: c.DB.DB(), Log: c.Log, Hooks: aggregates.NewLogHooks(c.Log)},
			TTL:  c.Cfg.Redis.LockTTL,
		}),
	}
	if c.Cfg.Redis.Addr == "" {
		return chain, nil
	}
	lock, err := redis.NewRunLock(c.Log, redis.LockConfig{
		Addr:     c.Cfg.Redis.Addr,
		Password: c.Cfg.Redis.Password,
		DB:       c.Cfg.Redis.DB,
		Key:      c.Cfg.Redis.LockKey,
		TTL:      c.Cfg.Redis.LockTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis run lock: %w", err)
	}
	c.closers = append(c.closers, lock.Close)
	return append(chain, lock), nil
}

// Close releases resources in reverse order of acquisition.
func (c *Core) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Log.Warn("close failed", "error", err)
		}
	}
	c.closers = nil
}
