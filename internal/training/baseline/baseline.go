// Package baseline is an in-process Trainer that fits a unigram-overlap model.
// It needs no external service, which makes it the default for local runs and the CLI.
package baseline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/platform/objectstore"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

const artifactContentType = "application/json"

// Model is the artifact written for each version.
type Model struct {
	Version   string         `json:"version"`
	BaseModel string         `json:"base_model"`
	Vocab     map[string]int `json:"vocab"`
	MeanScore float64        `json:"mean_score"`
	Examples  int            `json:"examples"`
}

type Trainer struct {
	log   *logger.Logger
	store objectstore.Store
}

var _ training.Trainer = (*Trainer)(nil)

// New returns a baseline trainer. With a nil store no artifact is written and
// results carry an empty ArtifactURI.
func New(log *logger.Logger, store objectstore.Store) *Trainer {
	if log == nil {
		log = logger.Nop()
	}
	return &Trainer{log: log.With("component", "BaselineTrainer"), store: store}
}

func (t *Trainer) Train(ctx context.Context, req training.TrainRequest) (*training.TrainResult, error) {
	if len(req.Train) == 0 {
		return nil, fmt.Errorf("baseline: no training examples")
	}
	model := Model{
		Version:   req.Version,
		BaseModel: req.BaseModel,
		Vocab:     map[string]int{},
		Examples:  len(req.Train),
	}
	var scoreSum float64
	for _, ex := range req.Train {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, tok := range Tokenize(ex.InputText + " " + ex.ResponseText) {
			model.Vocab[tok]++
		}
		scoreSum += ex.Score
	}
	model.MeanScore = scoreSum / float64(len(req.Train))

	var covered, total int
	for _, ex := range req.Validation {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, tok := range Tokenize(ex.InputText) {
			total++
			if _, ok := model.Vocab[tok]; ok {
				covered++
			}
		}
	}
	coverage := 0.0
	if total > 0 {
		coverage = float64(covered) / float64(total)
	}

	uri, err := t.writeArtifact(ctx, &model)
	if err != nil {
		return nil, err
	}
	t.log.Debug("baseline model fitted", "version", req.Version, "vocab_size", len(model.Vocab), "artifact_uri", uri)

	return &training.TrainResult{
		ArtifactURI: uri,
		Metrics: map[string]float64{
			"train_examples":      float64(len(req.Train)),
			"validation_examples": float64(len(req.Validation)),
			"vocab_size":          float64(len(model.Vocab)),
			"mean_score":          model.MeanScore,
			"validation_coverage": coverage,
		},
	}, nil
}

func (t *Trainer) writeArtifact(ctx context.Context, model *Model) (string, error) {
	if t.store == nil {
		return "", nil
	}
	body, err := json.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("baseline: encode artifact: %w", err)
	}
	uri, err := t.store.Put(ctx, ArtifactKey(model.Version), bytes.NewReader(body), artifactContentType)
	if err != nil {
		return "", fmt.Errorf("baseline: store artifact: %w", err)
	}
	return uri, nil
}

func ArtifactKey(version string) string {
	return "models/" + version + "/model.json"
}

// Tokenize lowercases s and splits it on anything that is not a letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// TopTokens returns up to n vocabulary entries by descending count, ties by token.
func (m *Model) TopTokens(n int) []string {
	out := make([]string, 0, len(m.Vocab))
	for tok := range m.Vocab {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := m.Vocab[out[i]], m.Vocab[out[j]]
		if ci != cj {
			return ci > cj
		}
		return out[i] < out[j]
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
