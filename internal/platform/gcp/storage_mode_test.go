package gcp

import (
	"errors"
	"testing"
)

func TestParseObjectStorageMode(t *testing.T) {
	cases := []struct {
		raw, host string
		want      ObjectStorageMode
		wantErr   bool
	}{
		{"", "", ObjectStorageModeGCS, false},
		{"", "http://fake-gcs:4443", ObjectStorageModeGCSEmulator, false},
		{"GCS", "", ObjectStorageModeGCS, false},
		{"gcs_emulator", "", ObjectStorageModeGCSEmulator, false},
		{"s3", "", "", true},
	}
	for _, tc := range cases {
		got, err := ParseObjectStorageMode(tc.raw, tc.host)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("ParseObjectStorageMode(%q,%q): got=%q err=%v", tc.raw, tc.host, got, err)
		}
	}
}

func TestValidateObjectStorageConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  ObjectStorageConfig
		code ObjectStorageConfigErrorCode
	}{
		{"ok gcs", ObjectStorageConfig{Mode: ObjectStorageModeGCS, Bucket: "models"}, ""},
		{"ok emulator", ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Bucket: "models", EmulatorHost: "http://127.0.0.1:4443"}, ""},
		{"bad mode", ObjectStorageConfig{Mode: "ftp", Bucket: "models"}, ObjectStorageConfigErrorInvalidMode},
		{"no bucket", ObjectStorageConfig{Mode: ObjectStorageModeGCS}, ObjectStorageConfigErrorMissingBucket},
		{"no host", ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Bucket: "models"}, ObjectStorageConfigErrorMissingEmulatorHost},
		{"relative host", ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Bucket: "models", EmulatorHost: "fake-gcs"}, ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateObjectStorageConfig(tc.cfg)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				return
			}
			var cfgErr *ObjectStorageConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.code {
				t.Fatalf("want code %q got %v", tc.code, err)
			}
		})
	}
}

func TestArtifactBucketObjectName(t *testing.T) {
	b := &ArtifactBucket{bucket: "models", prefix: "wayfarer"}
	got, err := b.objectName("/v1/model.json")
	if err != nil || got != "wayfarer/v1/model.json" {
		t.Fatalf("objectName: got=%q err=%v", got, err)
	}
	if _, err := b.objectName("../x"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}
