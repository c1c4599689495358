package config

import (
	"fmt"
	"strings"

	"github.com/kalambet/studybuddy/internal/settings"
)

type Config struct {
	App      AppConfig
	Settings SettingsConfig
	Storage  StorageConfig
	Server   ServerConfig
	Log      LogConfig
}

type AppConfig struct {
	Env string
}

// Deployment environments accepted by app.env.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// DefaultMaxBodyBytes caps request bodies on the HTTP API.
const DefaultMaxBodyBytes = 65536

type SettingsConfig struct {
	Backend    string
	Dir        string
	FileName   string
	StorageKey string
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port           int
	Token          string
	MaxBodyBytes   int
	AllowedOrigins []string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		App: AppConfig{
			Env: EnvLocal,
		},
		Settings: SettingsConfig{
			Backend:    string(settings.KindAuto),
			FileName:   "settings.json",
			StorageKey: settings.DefaultStorageKey,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port:         4100,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from $XDG_CONFIG_HOME/studybuddy/config.json
// and applies STUDYBUDDY_* environment overrides on top.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := checkEnv(cfg.App.Env); err != nil {
		return fmt.Errorf("invalid config app.env: %w", err)
	}
	if _, err := settings.ParseKind(cfg.Settings.Backend); err != nil {
		return fmt.Errorf("invalid config settings.backend: %w", err)
	}
	if cfg.Settings.FileName == "" {
		return fmt.Errorf("invalid config settings.file_name: must not be empty")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid config server.port: %d is out of range", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("invalid config server.max_body_bytes: must be positive, got %d", cfg.Server.MaxBodyBytes)
	}
	return nil
}

func checkEnv(env string) error {
	switch env {
	case EnvLocal, EnvDev, EnvProd:
		return nil
	}
	return fmt.Errorf("unknown environment %q (want %s, %s or %s)", env, EnvLocal, EnvDev, EnvProd)
}

// parseOrigins splits a comma-separated origin list, dropping blanks.
func parseOrigins(csv string) []string {
	var out []string
	for _, o := range strings.Split(csv, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
