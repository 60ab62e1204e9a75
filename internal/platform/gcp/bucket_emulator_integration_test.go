package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

func TestArtifactBucketEmulatorRoundTrip(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}
	host := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	if host == "" {
		host = "http://127.0.0.1:4443"
	}
	bucketName := fmt.Sprintf("wayfarer-it-%d", time.Now().UnixNano())
	createBucket(t, host, bucketName)

	ctx := context.Background()
	b, err := NewArtifactBucket(ctx, logger.Nop(), ObjectStorageConfig{
		Mode:         ObjectStorageModeGCSEmulator,
		Bucket:       bucketName,
		Prefix:       "artifacts",
		EmulatorHost: host,
	})
	if err != nil {
		t.Fatalf("NewArtifactBucket: %v", err)
	}
	defer b.Close()

	uri, err := b.Put(ctx, "v1/model.json", strings.NewReader(`{"vocab":[]}`), "application/json")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if uri != "gs://"+bucketName+"/artifacts/v1/model.json" {
		t.Fatalf("uri: %s", uri)
	}
	rc, err := b.Get(ctx, "v1/model.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != `{"vocab":[]}` {
		t.Fatalf("content: %s", got)
	}
}

func createBucket(t *testing.T, host, name string) {
	t.Helper()
	body := bytes.NewBufferString(fmt.Sprintf(`{"name":%q}`, name))
	resp, err := http.Post(host+"/storage/v1/b?project=test", "application/json", body)
	if err != nil {
		t.Skipf("storage emulator not reachable at %s: %v", host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("create bucket: status=%d body=%s", resp.StatusCode, b)
	}
}
