package training

import "context"

type TrainRequest struct {
	// Version is the id the resulting model will be recorded under.
	Version    string
	BaseModel  string
	Train      []Example
	Validation []Example
}

type TrainResult struct {
	ArtifactURI string
	Metrics     map[string]float64
}

// Trainer is the opaque training capability. It may take arbitrarily long and
// should return promptly once ctx is canceled.
type Trainer interface {
	Train(ctx context.Context, req TrainRequest) (*TrainResult, error)
}

type TrainerFunc func(ctx context.Context, req TrainRequest) (*TrainResult, error)

func (f TrainerFunc) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	return f(ctx, req)
}
