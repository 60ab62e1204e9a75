package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Contract describes who owns the transaction of an aggregate's writes.
type Contract struct {
	Name string
	// AggregateOwnedTx is true when write methods open their own transaction.
	AggregateOwnedTx bool
	Notes            string
}

type Aggregate interface {
	Contract() Contract
}

// PromoteInput is the metadata recorded for a freshly trained model.
type PromoteInput struct {
	Version         string
	BaseModel       string
	ArtifactURI     string
	TrainingCount   int
	ValidationCount int
	Metrics         map[string]float64
	CreatedAt       time.Time
}

// ModelRegistryAggregate owns the single-active-model invariant: Promote
// deactivates the current active version and inserts the new one as active
// in one transaction, so readers observe either the old or the new model.
type ModelRegistryAggregate interface {
	Aggregate
	Promote(ctx context.Context, in PromoteInput) (uuid.UUID, error)
	Activate(ctx context.Context, version string) error
}

// FeedbackAggregate marks feedback as consumed by training. Consume is
// idempotent: ids already consumed (or unknown) are skipped and not counted.
type FeedbackAggregate interface {
	Aggregate
	Consume(ctx context.Context, ids []uint64) (int64, error)
}

type ResolvePartialResult struct {
	RunID   uuid.UUID
	Version string
	// Marked counts feedback rows flipped by this call; already-consumed ids are not counted.
	Marked int64
	Total  int
}

// TrainingRunAggregate settles runs whose model was promoted but whose
// examples were not consumed: the consume and the run's status transition
// commit together.
type TrainingRunAggregate interface {
	Aggregate
	ResolvePartial(ctx context.Context, runID uuid.UUID) (ResolvePartialResult, error)
}

var ModelRegistryContract = Contract{
	Name:             "models.registry",
	AggregateOwnedTx: true,
	Notes:            "at most one model_version row is active",
}

var FeedbackContract = Contract{
	Name:             "feedback.consumption",
	AggregateOwnedTx: true,
	Notes:            "used_for_training only ever flips false to true",
}

var TrainingRunContract = Contract{
	Name:             "jobs.training_run",
	AggregateOwnedTx: true,
	Notes:            "partial_failure resolves to succeeded once its examples are consumed",
}
