package aggregates

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

const defaultLeaseTTL = 2 * time.Minute

type TrainingLeaseDeps struct {
	Base BaseDeps

	// Holder names this process in the lease row; defaults to host:pid.
	Holder string
	TTL    time.Duration
	Now    func() time.Time
}

// TrainingLease is a training.Locker kept in the training_lock row, so every
// process sharing the store is excluded, not only the current one. A holder
// that dies without releasing frees the lease after TTL.
type TrainingLease struct {
	deps TrainingLeaseDeps
}

var _ training.Locker = (*TrainingLease)(nil)

func NewTrainingLease(deps TrainingLeaseDeps) *TrainingLease {
	deps.Base = deps.Base.withDefaults()
	if deps.TTL <= 0 {
		deps.TTL = defaultLeaseTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if strings.TrimSpace(deps.Holder) == "" {
		host, _ := os.Hostname()
		deps.Holder = fmt.Sprintf("%s:%d", host, os.Getpid())
	}
	return &TrainingLease{deps: deps}
}

func (l *TrainingLease) TryAcquire(ctx context.Context) (context.Context, func(), error) {
	const op = "Jobs.TrainingLease.Acquire"
	token := uuid.NewString()
	table := jobs.TrainingLock{}.TableName()

	var busy bool
	var holder string
	err := executeWrite(ctx, l.deps.Base, op, func(dbc dbctx.Context) error {
		db, err := l.deps.Base.CASGuard.baseDB(dbc)
		if err != nil {
			return err
		}
		now := l.deps.Now().UTC()
		seed := &jobs.TrainingLock{ID: jobs.TrainingLockID, ExpiresAt: now, UpdatedAt: now}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
			return err
		}
		var cur jobs.TrainingLock
		if err := db.First(&cur, jobs.TrainingLockID).Error; err != nil {
			return err
		}
		if cur.Token != "" && cur.ExpiresAt.After(now) {
			busy, holder = true, cur.Holder
			return nil
		}
		// swap on the token we read; a concurrent taker leaves zero rows matched
		ok, err := l.deps.Base.CASGuard.UpdateWhere(dbc, table, map[string]any{
			"token":      token,
			"holder":     l.deps.Holder,
			"expires_at": now.Add(l.deps.TTL),
			"updated_at": now,
		}, "id = ? AND token = ?", jobs.TrainingLockID, cur.Token)
		if err != nil {
			return err
		}
		busy = !ok
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("store lock: %w", err)
	}
	if busy {
		return nil, nil, fmt.Errorf("store lock held by %q: %w", holder, training.ErrLockBusy)
	}

	held, release := training.HoldLease(ctx, l.deps.Base.Log.With("lock", table), l.deps.TTL,
		func(rctx context.Context) (bool, error) { return l.refresh(rctx, token) },
		func(rctx context.Context) { l.free(rctx, token) })
	return held, release, nil
}

func (l *TrainingLease) refresh(ctx context.Context, token string) (bool, error) {
	var ok bool
	err := executeWrite(ctx, l.deps.Base, "Jobs.TrainingLease.Refresh", func(dbc dbctx.Context) error {
		now := l.deps.Now().UTC()
		var err error
		ok, err = l.deps.Base.CASGuard.UpdateWhere(dbc, jobs.TrainingLock{}.TableName(), map[string]any{
			"expires_at": now.Add(l.deps.TTL),
			"updated_at": now,
		}, "id = ? AND token = ?", jobs.TrainingLockID, token)
		return err
	})
	return ok, err
}

// free clears the lease only while it still carries token, so a holder whose
// lease was taken over cannot release the new owner.
func (l *TrainingLease) free(ctx context.Context, token string) {
	err := executeWrite(ctx, l.deps.Base, "Jobs.TrainingLease.Release", func(dbc dbctx.Context) error {
		now := l.deps.Now().UTC()
		_, err := l.deps.Base.CASGuard.UpdateWhere(dbc, jobs.TrainingLock{}.TableName(), map[string]any{
			"token":      "",
			"holder":     "",
			"expires_at": now,
			"updated_at": now,
		}, "id = ? AND token = ?", jobs.TrainingLockID, token)
		return err
	})
	if err != nil {
		l.deps.Base.Log.Warn("store lock release failed", "error", err)
	}
}
