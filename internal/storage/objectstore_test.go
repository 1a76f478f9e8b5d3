package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty endpoint",
			config:  Config{Endpoint: "", Bucket: "test"},
			wantErr: true,
		},
		{
			name:    "empty bucket",
			config:  Config{Endpoint: "localhost:9000", Bucket: ""},
			wantErr: true,
		},
		{
			name: "valid config",
			config: Config{
				Endpoint:        "localhost:9000",
				Bucket:          "test",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestIntegration_ObjectOperations exercises Put/Get/List against a real
// MinIO instance. Skipped when none is reachable.
func TestIntegration_ObjectOperations(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := New(Config{
		Endpoint:        endpoint,
		Bucket:          "scout-test",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UseSSL:          false,
	})
	if err != nil {
		t.Skipf("Skipping: %v", err)
	}

	ctx := context.Background()
	if err := client.EnsureBucket(ctx); err != nil {
		t.Skipf("Skipping: MinIO not available: %v", err)
	}

	payload := []byte(`{"hello":"world"}`)
	if err := client.Put(ctx, "test/one.json", payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := client.Get(ctx, "test/one.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %s, want %s", got, payload)
	}

	keys, err := client.List(ctx, "test")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	found := false
	for _, k := range keys {
		if k == "test/one.json" {
			found = true
		}
	}
	if !found {
		t.Errorf("List() = %v, want to contain test/one.json", keys)
	}

	_, err = client.Get(ctx, "test/definitely-missing.json")
	if !errors.Is(err, ErrNotExist) {
		t.Errorf("Get(missing) error = %v, want ErrNotExist", err)
	}
}
