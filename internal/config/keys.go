package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kalambet/studybuddy/internal/settings"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	check   func(raw string) error // optional, run by SetKey
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "app.env", typ: kString, env: "STUDYBUDDY_APP_ENV",
		check:   checkEnv,
		apply:   func(cfg *Config, v any) { cfg.App.Env = v.(string) },
		extract: func(cfg Config) any { return cfg.App.Env },
	},
	{
		key: "settings.backend", typ: kString, env: "STUDYBUDDY_SETTINGS_BACKEND",
		check: func(raw string) error {
			_, err := settings.ParseKind(raw)
			return err
		},
		apply:   func(cfg *Config, v any) { cfg.Settings.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Settings.Backend },
	},
	{
		key: "settings.dir", typ: kString, env: "STUDYBUDDY_SETTINGS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Settings.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Settings.Dir },
	},
	{
		key: "settings.file_name", typ: kString, env: "STUDYBUDDY_SETTINGS_FILE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Settings.FileName = v.(string) },
		extract: func(cfg Config) any { return cfg.Settings.FileName },
	},
	{
		key: "settings.storage_key", typ: kString, env: "STUDYBUDDY_SETTINGS_STORAGE_KEY",
		apply:   func(cfg *Config, v any) { cfg.Settings.StorageKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Settings.StorageKey },
	},
	{
		key: "storage.data_dir", typ: kString, env: "STUDYBUDDY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "STUDYBUDDY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_body_bytes", typ: kInt, env: "STUDYBUDDY_SERVER_MAX_BODY_BYTES",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxBodyBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxBodyBytes },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "STUDYBUDDY_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = parseOrigins(v.(string)) },
		extract: func(cfg Config) any { return strings.Join(cfg.Server.AllowedOrigins, ",") },
	},
	{
		key: "server.token", typ: kString, env: "STUDYBUDDY_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "STUDYBUDDY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// applyBackend copies stored values over the defaults. Secrets are only
// ever read from the environment.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("could not parse integer from env var, using default value", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
