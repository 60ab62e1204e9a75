package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
)

func TestInjectedTxRunner(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name     string
		runner   *InjectedTxRunner
		body     error
		wantErr  error
		commits  int
		rollback int
	}{
		{"commit", &InjectedTxRunner{}, nil, nil, 1, 0},
		{"body error", &InjectedTxRunner{}, boom, boom, 0, 1},
		{"commit failure", &InjectedTxRunner{FailCommit: boom}, nil, boom, 0, 1},
		{"before body", &InjectedTxRunner{FailBeforeBody: boom}, nil, boom, 0, 1},
		{"other call targeted", &InjectedTxRunner{FailCommit: boom, FailOnCall: 2}, nil, nil, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.runner.InTx(context.Background(), func(_ dbctx.Context) error { return tc.body })
			if !errors.Is(err, tc.wantErr) || (tc.wantErr == nil && err != nil) {
				t.Fatalf("err: want=%v got=%v", tc.wantErr, err)
			}
			if tc.runner.BeginCalls != 1 || tc.runner.CommitCalls != tc.commits || tc.runner.RollbackCalls != tc.rollback {
				t.Fatalf("counters begin=%d commit=%d rollback=%d", tc.runner.BeginCalls, tc.runner.CommitCalls, tc.runner.RollbackCalls)
			}
		})
	}
}

func TestInjectedTxRunnerFailOnCall(t *testing.T) {
	boom := errors.New("boom")
	r := &InjectedTxRunner{FailCommit: boom, FailOnCall: 2}
	noop := func(_ dbctx.Context) error { return nil }
	if err := r.InTx(context.Background(), noop); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := r.InTx(context.Background(), noop); !errors.Is(err, boom) {
		t.Fatalf("second call: want boom got %v", err)
	}
	if err := r.InTx(context.Background(), noop); err != nil {
		t.Fatalf("third call: %v", err)
	}
}
