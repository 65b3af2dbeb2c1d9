package config

import (
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "k")
	t.Setenv("SHOPIFY_API_SECRET", "s3cr3t")
	t.Setenv("PLATFORM_TIMEOUT", "10s")

	cfg, err := Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Shopify.APISecret != "s3cr3t" {
		t.Errorf("Shopify.APISecret = %q", cfg.Shopify.APISecret)
	}
	if cfg.Shopify.APIVersion != "2024-10" {
		t.Errorf("Shopify.APIVersion = %q, want default", cfg.Shopify.APIVersion)
	}
	if cfg.PlatformTimeout != 10*time.Second {
		t.Errorf("PlatformTimeout = %s", cfg.PlatformTimeout)
	}
	if cfg.StorageDriver != StorageMongo {
		t.Errorf("StorageDriver = %q, want mongo", cfg.StorageDriver)
	}
}

func TestReadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing encryption key", env: map[string]string{}},
		{name: "unknown driver", env: map[string]string{"ENCRYPTION_KEY": "k", "STORAGE_DRIVER": "cassandra"}},
		{name: "postgres without url", env: map[string]string{"ENCRYPTION_KEY": "k", "STORAGE_DRIVER": "postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENCRYPTION_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Read(); err == nil {
				t.Error("Read() error = nil, want error")
			}
		})
	}
}
