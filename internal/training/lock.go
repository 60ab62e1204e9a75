package training

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

var (
	// ErrLockBusy is returned (possibly wrapped) by a Locker whose lock is held elsewhere.
	ErrLockBusy = errors.New("training lock busy")
	// ErrLockLost is the cancel cause of a held context whose lease ran out.
	ErrLockLost = errors.New("training lock lost")
)

// Locker guards the single-run-at-a-time rule. TryAcquire never waits for a
// busy lock. The returned context is derived from ctx and is canceled with
// ErrLockLost if the lock stops being held before release; release must be
// safe to call more than once.
type Locker interface {
	TryAcquire(ctx context.Context) (held context.Context, release func(), err error)
}

// ProcessLocker serialises runs inside one process.
type ProcessLocker struct {
	mu sync.Mutex
}

func (l *ProcessLocker) TryAcquire(ctx context.Context) (context.Context, func(), error) {
	if !l.mu.TryLock() {
		return nil, nil, ErrLockBusy
	}
	return ctx, sync.OnceFunc(l.mu.Unlock), nil
}

// ChainLocker acquires every locker in order and releases them in reverse.
// Each locker acquires under the context held by the one before it, so the
// final context is canceled when any lease in the chain is lost. If any
// acquire fails, the ones already held are released.
type ChainLocker []Locker

func (c ChainLocker) TryAcquire(ctx context.Context) (context.Context, func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	held := ctx
	for _, l := range c {
		if l == nil {
			continue
		}
		next, rel, err := l.TryAcquire(held)
		if err != nil {
			releaseAll()
			return nil, nil, err
		}
		held = next
		releases = append(releases, rel)
	}
	return held, sync.OnceFunc(releaseAll), nil
}

// LeaseRefresher extends a lease. ok is false once the lease belongs to
// someone else.
type LeaseRefresher func(ctx context.Context) (ok bool, err error)

// HoldLease keeps a TTL lease alive until the returned release is called.
// The lease is refreshed every ttl/3. The held context is canceled with
// ErrLockLost when a refresh reports the lease gone, or when refreshes keep
// failing long enough that the lease could expire before the next attempt.
// release stops refreshing, then calls free and cancels the held context.
func HoldLease(ctx context.Context, log *logger.Logger, ttl time.Duration, refresh LeaseRefresher, free func(context.Context)) (context.Context, func()) {
	if log == nil {
		log = logger.Nop()
	}
	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepLease(log, ttl, refresh, stop, cancel)
	}()
	return held, sync.OnceFunc(func() {
		close(stop)
		<-done
		fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer fcancel()
		free(fctx)
		cancel(nil)
	})
}

func keepLease(log *logger.Logger, ttl time.Duration, refresh LeaseRefresher, stop <-chan struct{}, lost context.CancelCauseFunc) {
	every := ttl / 3
	t := time.NewTicker(every)
	defer t.Stop()
	renewed := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			rctx, cancel := context.WithTimeout(context.Background(), min(5*time.Second, every))
			ok, err := refresh(rctx)
			cancel()
			switch {
			case err != nil:
				log.Warn("training lock refresh failed", "error", err)
				if time.Since(renewed)+every >= ttl {
					log.Error("training lock lease about to expire, abandoning run")
					lost(ErrLockLost)
					return
				}
			case !ok:
				log.Error("training lock lost before release")
				lost(ErrLockLost)
				return
			default:
				renewed = time.Now()
			}
		}
	}
}
