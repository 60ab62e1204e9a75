package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/wayfarer-backend/internal/data/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// InjectedTxRunner injects transaction failures for aggregate tests.
//
// With DB nil the body runs without a transaction. With DB set the body runs
// inside a real transaction which is rolled back whenever a failure is
// injected, so tests can assert that nothing was persisted.
type InjectedTxRunner struct {
	mu sync.Mutex

	DB *gorm.DB

	FailBegin      error
	FailBeforeBody error
	FailCommit     error
	// FailOnCall restricts injection to the n-th InTx call (1-based); 0 injects on every call.
	FailOnCall int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	inject := r.FailOnCall == 0 || r.FailOnCall == r.BeginCalls
	var failBegin, failBeforeBody, failCommit error
	if inject {
		failBegin, failBeforeBody, failCommit = r.FailBegin, r.FailBeforeBody, r.FailCommit
	}
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.count(&r.RollbackCalls)
		return failBeforeBody
	}
	if fn == nil {
		r.count(&r.CommitCalls)
		return nil
	}

	if r.DB == nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.count(&r.RollbackCalls)
			return err
		}
		if failCommit != nil {
			r.count(&r.RollbackCalls)
			return failCommit
		}
		r.count(&r.CommitCalls)
		return nil
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(dbctx.Context{Ctx: ctx, Tx: tx}); err != nil {
			return err
		}
		return failCommit
	})
	if err != nil {
		r.count(&r.RollbackCalls)
		return err
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
