package training

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindStoreUnavailable Kind = "store_unavailable"
	KindTraining         Kind = "training_error"
	KindPartialFailure   Kind = "partial_failure"
	KindCanceled         Kind = "canceled"
	KindRunInProgress    Kind = "run_in_progress"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTraining         = errors.New("training failed")
	// ErrPartialFailure means the model was promoted but its examples were not consumed.
	ErrPartialFailure = errors.New("partial failure")
	ErrCanceled       = errors.New("training run canceled")
	ErrRunInProgress  = errors.New("training run already in progress")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrInvalidArgument
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	case KindTraining:
		return ErrTraining
	case KindPartialFailure:
		return ErrPartialFailure
	case KindCanceled:
		return ErrCanceled
	case KindRunInProgress:
		return ErrRunInProgress
	default:
		return nil
	}
}

// Error is returned by every failing pipeline operation. Stage is the driver
// state the failure happened in. Version and ExampleIDs are set for partial
// failures so the consume can be retried.
type Error struct {
	Kind       Kind
	Stage      State
	Version    string
	ExampleIDs []uint64
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		fmt.Fprintf(&b, " during %s", e.Stage)
	}
	if e.Version != "" {
		fmt.Fprintf(&b, " (version %s, %d examples)", e.Version, len(e.ExampleIDs))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the sentinel of e's kind, so errors.Is(err, ErrTraining) works
// without unwrapping to *Error.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func newError(kind Kind, stage State, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Cause: cause}
}
