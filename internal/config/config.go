package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	EngineBinary string

	ListenAddr string

	RedisURL    string
	DatabaseURL string

	CloudEvalURL     string
	CloudEvalTimeout int // seconds

	PresetName string
	PresetDir  string

	SessionID string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		CloudEvalTimeout: 5,
		PresetName:       "default",
	}

	cfg.EngineBinary = strings.TrimSpace(os.Getenv("DESKCHESS_ENGINE_BINARY"))
	if cfg.EngineBinary == "" {
		return nil, errors.New("DESKCHESS_ENGINE_BINARY is required")
	}

	if v := strings.TrimSpace(os.Getenv("DESKCHESS_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("DESKCHESS_REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DESKCHESS_DATABASE_URL"))
	cfg.CloudEvalURL = strings.TrimSpace(os.Getenv("DESKCHESS_CLOUD_EVAL_URL"))

	if v := strings.TrimSpace(os.Getenv("DESKCHESS_CLOUD_EVAL_TIMEOUT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CloudEvalTimeout = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("DESKCHESS_PRESET")); v != "" {
		cfg.PresetName = v
	}
	cfg.PresetDir = strings.TrimSpace(os.Getenv("DESKCHESS_PRESET_DIR"))
	cfg.SessionID = strings.TrimSpace(os.Getenv("DESKCHESS_SESSION_ID"))

	return cfg, nil
}
