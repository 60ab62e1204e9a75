package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
)

func TestExecuteWriteStatuses(t *testing.T) {
	cases := []struct {
		name      string
		bodyErr   error
		status    string
		conflicts int
		retries   int
	}{
		{"success", nil, "success", 0, 0},
		{"invariant", InvariantError("two active models"), string(domainagg.CodeInvariantViolation), 0, 0},
		{"conflict", ConflictError("run already settled"), string(domainagg.CodeConflict), 1, 0},
		{"retryable", context.DeadlineExceeded, string(domainagg.CodeRetryable), 0, 1},
		{"internal", errors.New("boom"), string(domainagg.CodeInternal), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := &spyHooks{}
			err := executeWrite(context.Background(), BaseDeps{
				Runner: spyTxRunner{},
				Hooks:  hooks,
			}, "aggregate.test."+tc.name, func(_ dbctx.Context) error { return tc.bodyErr })
			if (err == nil) != (tc.bodyErr == nil) {
				t.Fatalf("err: want=%v got=%v", tc.bodyErr, err)
			}
			if len(hooks.Operations) != 1 || hooks.Operations[0].Status != tc.status {
				t.Fatalf("operations: want status=%s got=%+v", tc.status, hooks.Operations)
			}
			if len(hooks.Conflicts) != tc.conflicts || len(hooks.Retries) != tc.retries {
				t.Fatalf("counters: conflicts=%d retries=%d", len(hooks.Conflicts), len(hooks.Retries))
			}
		})
	}
}

func TestAggregateErrorStatus(t *testing.T) {
	if got := aggregateErrorStatus(nil); got != "success" {
		t.Fatalf("nil status: want=success got=%s", got)
	}
	if got := aggregateErrorStatus(context.DeadlineExceeded); got != string(domainagg.CodeRetryable) {
		t.Fatalf("deadline status: got=%s", got)
	}
}

type spyTxRunner struct{}

func (spyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(dbctx.Context{Ctx: ctx})
}

type spyHooks struct {
	Operations []spyOperation
	Conflicts  []string
	Retries    []string
}

type spyOperation struct {
	Name   string
	Status string
}

func (h *spyHooks) ObserveOperation(name, status string, _ time.Duration) {
	h.Operations = append(h.Operations, spyOperation{Name: name, Status: status})
}

func (h *spyHooks) IncConflict(name string) {
	h.Conflicts = append(h.Conflicts, name)
}

func (h *spyHooks) IncRetry(name string) {
	h.Retries = append(h.Retries, name)
}
