package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	cfg, err := LoadAppConfig("")
	if err != nil {
		t.Fatalf("LoadAppConfig() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Model.Source != SourceFile || cfg.TopN != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if got := engine.WeightsFrom(cfg); got != engine.DefaultWeights() {
		t.Errorf("weights = %+v, want defaults", got)
	}
	if cfg.DefaultLoadTimeout() != 30*time.Second {
		t.Errorf("load timeout = %v", cfg.DefaultLoadTimeout())
	}
}

func TestLoadAppConfig_FileAndEnv(t *testing.T) {
	path := writeFile(t, "grocerec.yaml", `
server:
  addr: ":9090"
  rate_limit: 120
model:
  source: redis
  key_prefix: shop
  reload_interval: 1m
redis:
  addr: "redis:6379"
  db: 2
weights:
  seasonal: 0.02
log:
  level: debug
`)
	t.Setenv("GROCEREC_SERVER_ADDR", ":7070")
	t.Setenv("GROCEREC_WEIGHTS_ITEM_SIMILARITY", "0.6")
	t.Setenv("GROCEREC_MODEL_LOAD_TIMEOUT", "5s")
	t.Setenv("GROCEREC_UNKNOWN_KEY", "ignored")

	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig() error = %v", err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("server.addr = %q, env should win", cfg.Server.Addr)
	}
	if cfg.Server.RateLimit != 120 {
		t.Errorf("server.rate_limit = %d", cfg.Server.RateLimit)
	}
	if cfg.Model.Source != SourceRedis || cfg.Model.KeyPrefix != "shop" || cfg.Model.ReloadInterval != time.Minute {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Model.LoadTimeout != 5*time.Second {
		t.Errorf("model.load_timeout = %v", cfg.Model.LoadTimeout)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	want := engine.Weights{ItemSimilarity: 0.6, TagSimilarity: 0.3, Seasonal: 0.02}
	if cfg.Weights != want {
		t.Errorf("weights = %+v, want %+v", cfg.Weights, want)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadAppConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown source", "model:\n  source: s3\n"},
		{"negative weight", "weights:\n  tag_similarity: -1\n"},
		{"zero top_n", "top_n: 0\n"},
		{"file without path", "model:\n  path: \"\"\n"},
		{"redis without addr", "model:\n  source: redis\nredis:\n  addr: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAppConfig(writeFile(t, "bad.yaml", tt.yaml))
			if !core.IsInvalidInput(err) {
				t.Errorf("LoadAppConfig() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLoadAppConfig_MissingFile(t *testing.T) {
	if _, err := LoadAppConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadAppConfig() expected error for missing file")
	}
}
