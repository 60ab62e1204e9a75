package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httpMW "github.com/yungbote/wayfarer-backend/internal/http/middleware"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.DSN = filepath.Join(dir, "wayfarer.db")
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")
	cfg.AdminJWTSecret = "app-test-secret"
	cfg.ShutdownTimeout = 5 * time.Second

	a, err := New(context.Background(), logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func call(t *testing.T, a *App, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, req)
	return rec
}

func TestAppFeedbackToActiveModel(t *testing.T) {
	a := newTestApp(t)
	token, err := httpMW.SignAdminToken(a.Cfg.AdminJWTSecret, "ops", time.Hour)
	if err != nil {
		t.Fatalf("SignAdminToken: %v", err)
	}

	if rec := call(t, a, http.MethodGet, "/healthcheck", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: %d", rec.Code)
	}

	for i := 0; i < 10; i++ {
		score := 5.0
		if i >= 6 {
			score = 2.0
		}
		rec := call(t, a, http.MethodPost, "/api/feedback", "", map[string]any{
			"user_input":     fmt.Sprintf("flights to city %d", i),
			"response":       fmt.Sprintf("here are flights to city %d", i),
			"feedback_score": score,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("feedback %d: %d %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := call(t, a, http.MethodPost, "/api/training/runs", token, map[string]any{"seed": 42})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start run: %d %s", rec.Code, rec.Body.String())
	}
	var started struct {
		Run struct {
			ID string `json:"id"`
		} `json:"run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	a.Runner.Wait()

	rec = call(t, a, http.MethodGet, "/api/training/runs/"+started.Run.ID, token, nil)
	var got struct {
		Run struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		} `json:"run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if got.Run.Status != "succeeded" || got.Run.Version == "" {
		t.Fatalf("run: %+v", got.Run)
	}

	rec = call(t, a, http.MethodGet, "/api/models/active", token, nil)
	var active struct {
		Model struct {
			Version           string `json:"version"`
			TrainingDataCount int    `json:"training_data_count"`
			ArtifactURI       string `json:"artifact_uri"`
		} `json:"model"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &active); err != nil {
		t.Fatalf("decode model: %v", err)
	}
	if active.Model.Version != got.Run.Version || active.Model.TrainingDataCount != 4 || active.Model.ArtifactURI == "" {
		t.Fatalf("active model: %+v", active.Model)
	}

	rec = call(t, a, http.MethodGet, "/api/feedback/stats", "", nil)
	var stats struct {
		Stats struct {
			Total  int64 `json:"total"`
			Used   int64 `json:"used"`
			Unused int64 `json:"unused"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Stats.Total != 10 || stats.Stats.Used != 6 || stats.Stats.Unused != 4 {
		t.Fatalf("stats: %+v", stats.Stats)
	}
}

func TestAppRunShutsDownOnCancel(t *testing.T) {
	a := newTestApp(t)
	a.Cfg.Port = "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
