// Package trainer calls a remote training service over HTTP.
package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/wayfarer-backend/internal/platform/httpx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

const trainPath = "/v1/train"

type Config struct {
	BaseURL string
	APIKey  string
	// MaxRetries applies only to responses the service marks as temporary (429, 502-504)
	// and to transport timeouts.
	MaxRetries int
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

var _ training.Trainer = (*Client)(nil)

// New builds a client with no overall timeout; training can run for hours and
// is bounded by the caller's context instead.
func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing trainer base url")
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		log:        log.With("service", "TrainerClient"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{},
	}, nil
}

type trainRequest struct {
	Version    string             `json:"version"`
	BaseModel  string             `json:"base_model"`
	Train      []training.Example `json:"train"`
	Validation []training.Example `json:"validation"`
}

type trainResponse struct {
	ArtifactURI string             `json:"artifact_uri"`
	Metrics     map[string]float64 `json:"metrics"`
}

func (c *Client) Train(ctx context.Context, req training.TrainRequest) (*training.TrainResult, error) {
	body := trainRequest{
		Version:    req.Version,
		BaseModel:  req.BaseModel,
		Train:      nonNil(req.Train),
		Validation: nonNil(req.Validation),
	}
	var out trainResponse
	if err := c.do(ctx, http.MethodPost, trainPath, body, &out); err != nil {
		return nil, err
	}
	if out.Metrics == nil {
		out.Metrics = map[string]float64{}
	}
	return &training.TrainResult{ArtifactURI: out.ArtifactURI, Metrics: out.Metrics}, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{Service: "trainer", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("trainer decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}
		if attempt >= c.maxRetries || !httpx.IsRetryableError(err) {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 30*time.Second))
		c.log.Warn("Trainer request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
}

func nonNil(in []training.Example) []training.Example {
	if in == nil {
		return []training.Example{}
	}
	return in
}
