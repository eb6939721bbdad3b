package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	d := Defaults()

	if d.Database.MaxOpenConns != 25 || d.Database.MaxIdleConns != 5 {
		t.Errorf("database defaults = %+v", d.Database)
	}
	if d.Search.Threshold != 0.4 {
		t.Errorf("expected threshold 0.4, got %f", d.Search.Threshold)
	}
	if d.Maintenance.BatchSize != 10000 {
		t.Errorf("expected batch size 10000, got %d", d.Maintenance.BatchSize)
	}
	if !d.Index.Words || d.Index.HNSW {
		t.Errorf("index defaults = %+v", d.Index)
	}
	if d.Upload.CacheSize <= 0 || d.Upload.MaxBytes <= 0 {
		t.Errorf("upload defaults = %+v", d.Upload)
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "WEB_PORT", "SIMILARITY_THRESHOLD", "WORD_INDEX", "UPLOAD_DIR"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	d := Defaults()

	if cfg.Database.URL != "" {
		t.Errorf("expected empty database URL, got %q", cfg.Database.URL)
	}
	if cfg.Web.Port != d.Web.Port {
		t.Errorf("expected port %d, got %d", d.Web.Port, cfg.Web.Port)
	}
	if cfg.Upload.Dir != d.Upload.Dir {
		t.Errorf("expected upload dir %q, got %q", d.Upload.Dir, cfg.Upload.Dir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sigboard")
	t.Setenv("WEB_PORT", "9000")
	t.Setenv("SIMILARITY_THRESHOLD", "0.25")
	t.Setenv("WORD_INDEX", "false")
	t.Setenv("HNSW_INDEX", "true")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")
	t.Setenv("UPLOAD_MAX_PIXELS", "4096")

	cfg := Load()

	if cfg.Database.URL != "postgres://localhost/sigboard" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Web.Port)
	}
	if cfg.Search.Threshold != 0.25 {
		t.Errorf("expected threshold 0.25, got %f", cfg.Search.Threshold)
	}
	if cfg.Index.Words || !cfg.Index.HNSW {
		t.Errorf("unexpected index config %+v", cfg.Index)
	}
	if cfg.Upload.MaxBytes != 1024 {
		t.Errorf("expected max bytes 1024, got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Upload.MaxPixels != 4096 {
		t.Errorf("expected max pixels 4096, got %d", cfg.Upload.MaxPixels)
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"unset", "", 7},
		{"valid", "12", 12},
		{"zero falls back", "0", 7},
		{"negative falls back", "-3", 7},
		{"invalid falls back", "abc", 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SIGBOARD_TEST_INT", tc.value)
			if got := envInt("SIGBOARD_TEST_INT", 7); got != tc.expected {
				t.Errorf("envInt(%q) = %d; want %d", tc.value, got, tc.expected)
			}
		})
	}
}

func TestEnvFloatAndBool(t *testing.T) {
	t.Setenv("SIGBOARD_TEST_FLOAT", "nope")
	if got := envFloat("SIGBOARD_TEST_FLOAT", 0.5); got != 0.5 {
		t.Errorf("envFloat(invalid) = %f; want 0.5", got)
	}
	t.Setenv("SIGBOARD_TEST_FLOAT", "-1")
	if got := envFloat("SIGBOARD_TEST_FLOAT", 0.5); got != 0.5 {
		t.Errorf("envFloat(-1) = %f; want 0.5", got)
	}
	t.Setenv("SIGBOARD_TEST_FLOAT", "0")
	if got := envFloat("SIGBOARD_TEST_FLOAT", 0.5); got != 0 {
		t.Errorf("envFloat(0) = %f; want 0", got)
	}

	t.Setenv("SIGBOARD_TEST_BOOL", "maybe")
	if got := envBool("SIGBOARD_TEST_BOOL", true); !got {
		t.Error("envBool(invalid) should return the default")
	}
	t.Setenv("SIGBOARD_TEST_BOOL", "0")
	if got := envBool("SIGBOARD_TEST_BOOL", true); got {
		t.Error("envBool(0) should be false")
	}
}

func TestLoad_Content(t *testing.T) {
	t.Setenv("CONTENT_DIR", "/srv/posts")
	t.Setenv("CONTENT_BUCKET_ENDPOINT", "localhost:9000")
	t.Setenv("CONTENT_BUCKET", "posts")
	t.Setenv("CONTENT_BUCKET_USE_SSL", "false")
	t.Setenv("MAINTENANCE_RATE", "2.5")

	cfg := Load()

	if cfg.Content.Dir != "/srv/posts" {
		t.Errorf("unexpected content dir %q", cfg.Content.Dir)
	}
	if cfg.Content.BucketEndpoint != "localhost:9000" || cfg.Content.Bucket != "posts" || cfg.Content.BucketUseSSL {
		t.Errorf("unexpected bucket config %+v", cfg.Content)
	}
	if cfg.Content.BucketPrefix != "posts" {
		t.Errorf("expected default bucket prefix, got %q", cfg.Content.BucketPrefix)
	}
	if cfg.Maintenance.Rate != 2.5 {
		t.Errorf("expected maintenance rate 2.5, got %f", cfg.Maintenance.Rate)
	}
	if cfg.Web.AllowedOrigins != "*" {
		t.Errorf("expected default allowed origins, got %q", cfg.Web.AllowedOrigins)
	}
}
