package config

import "testing"

func TestLoadRequiresEngineBinary(t *testing.T) {
	t.Setenv("DESKCHESS_ENGINE_BINARY", "")
	if _, err := Load(); err == nil {
		t.Fatalf("missing engine binary accepted")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("DESKCHESS_ENGINE_BINARY", "/usr/bin/stockfish")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.PresetName != "default" || cfg.CloudEvalTimeout != 5 {
		t.Fatalf("defaults = %+v", cfg)
	}

	t.Setenv("DESKCHESS_LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("DESKCHESS_PRESET", "deep")
	t.Setenv("DESKCHESS_CLOUD_EVAL_TIMEOUT", "12")
	t.Setenv("DESKCHESS_REDIS_URL", "redis://localhost:6379/0")

	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9090" || cfg.PresetName != "deep" {
		t.Fatalf("overrides = %+v", cfg)
	}
	if cfg.CloudEvalTimeout != 12 || cfg.RedisURL == "" {
		t.Fatalf("overrides = %+v", cfg)
	}
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	t.Setenv("DESKCHESS_ENGINE_BINARY", "/usr/bin/stockfish")
	t.Setenv("DESKCHESS_CLOUD_EVAL_TIMEOUT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CloudEvalTimeout != 5 {
		t.Fatalf("bad number overrode default: %+v", cfg)
	}
}
