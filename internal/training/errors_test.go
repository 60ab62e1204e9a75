package training

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	cause := errors.New("trainer exploded")
	err := fmt.Errorf("run: %w", newError(KindTraining, StateTraining, cause))

	if !errors.Is(err, ErrTraining) {
		t.Fatalf("expected errors.Is(err, ErrTraining)")
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("training error must not match ErrStoreUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause must stay reachable")
	}
	if KindOf(err) != KindTraining {
		t.Fatalf("KindOf: got %q", KindOf(err))
	}
	if KindOf(cause) != "" {
		t.Fatalf("KindOf on plain error: got %q", KindOf(cause))
	}
}

func TestPartialFailureMessage(t *testing.T) {
	err := &Error{Kind: KindPartialFailure, Stage: StateConsuming, Version: "v1", ExampleIDs: []uint64{1, 2}, Cause: errors.New("db down")}
	want := "partial_failure during consuming (version v1, 2 examples): db down"
	if err.Error() != want {
		t.Fatalf("want %q got %q", want, err.Error())
	}
}
