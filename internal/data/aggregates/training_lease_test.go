package aggregates_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/wayfarer-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/wayfarer-backend/internal/data/repos/testutil"
	"github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/training"
	"gorm.io/gorm"
)

func newLease(t *testing.T, db *gorm.DB, holder string, ttl time.Duration, now func() time.Time) *aggregates.TrainingLease {
	t.Helper()
	return aggregates.NewTrainingLease(aggregates.TrainingLeaseDeps{
		Base:   aggregates.BaseDeps{DB: db, Log: testutil.Logger(t)},
		Holder: holder,
		TTL:    ttl,
		Now:    now,
	})
}

func readLock(t *testing.T, db *gorm.DB) jobs.TrainingLock {
	t.Helper()
	var row jobs.TrainingLock
	if err := db.First(&row, jobs.TrainingLockID).Error; err != nil {
		t.Fatalf("read training_lock: %v", err)
	}
	return row
}

func TestTrainingLeaseExcludesOtherHolders(t *testing.T) {
	db := testutil.FreshDB(t)
	ctx := context.Background()
	a := newLease(t, db, "server", time.Minute, nil)
	b := newLease(t, db, "cli", time.Minute, nil)

	_, release, err := a.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if row := readLock(t, db); row.Holder != "server" || row.Token == "" {
		t.Fatalf("lease row not claimed: %+v", row)
	}
	_, _, err = b.TryAcquire(ctx)
	if !errors.Is(err, training.ErrLockBusy) {
		t.Fatalf("want ErrLockBusy, got %v", err)
	}

	release()
	release()
	if row := readLock(t, db); row.Token != "" || row.Holder != "" {
		t.Fatalf("lease row not cleared on release: %+v", row)
	}
	_, release2, err := b.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestTrainingLeaseTakesOverExpiredLease(t *testing.T) {
	db := testutil.FreshDB(t)
	ctx := context.Background()
	t0 := time.Now().UTC()
	later := func() time.Time { return t0.Add(3 * time.Minute) }

	crashed := newLease(t, db, "crashed", 2*time.Minute, func() time.Time { return t0 })
	_, releaseCrashed, err := crashed.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	next := newLease(t, db, "next", 2*time.Minute, later)
	_, releaseNext, err := next.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("expired lease must be taken over: %v", err)
	}
	defer releaseNext()

	// the stale holder's release must not free the new owner
	releaseCrashed()
	if row := readLock(t, db); row.Holder != "next" {
		t.Fatalf("stale release cleared the new lease: %+v", row)
	}
	third := newLease(t, db, "third", 2*time.Minute, later)
	if _, _, err := third.TryAcquire(ctx); !errors.Is(err, training.ErrLockBusy) {
		t.Fatalf("want ErrLockBusy, got %v", err)
	}
}

func TestTrainingLeaseCancelsHeldContextWhenTakenOver(t *testing.T) {
	db := testutil.FreshDB(t)
	lease := newLease(t, db, "server", 60*time.Millisecond, nil)

	held, release, err := lease.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()
	if err := db.Model(&jobs.TrainingLock{}).Where("id = ?", jobs.TrainingLockID).
		Updates(map[string]any{"token": "someone-else", "holder": "other"}).Error; err != nil {
		t.Fatalf("steal lease: %v", err)
	}

	select {
	case <-held.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("held context survived a lost lease")
	}
	if !errors.Is(context.Cause(held), training.ErrLockLost) {
		t.Fatalf("want ErrLockLost, got %v", context.Cause(held))
	}
}

func TestTrainingLeaseStoreFailureIsNotBusy(t *testing.T) {
	db := testutil.FreshDB(t)
	lease := aggregates.NewTrainingLease(aggregates.TrainingLeaseDeps{
		Base: aggregates.BaseDeps{
			DB:     db,
			Runner: &aggtest.InjectedTxRunner{DB: db, FailBegin: errors.New("connection refused")},
		},
	})
	_, _, err := lease.TryAcquire(context.Background())
	if err == nil || errors.Is(err, training.ErrLockBusy) {
		t.Fatalf("want a store error, got %v", err)
	}
}
