// Package config loads maiiam configuration from a JSON file backend with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
)

type Config struct {
	Remote   RemoteConfig
	Server   ServerConfig
	Storage  StorageConfig
	Research ResearchConfig
	Log      LogConfig
}

// RemoteConfig locates the remote inference/chat service and carries the
// fixed tenant credentials attached to every call.
type RemoteConfig struct {
	BaseURL     string
	BearerToken string
	AppID       string
	UsageKey    string
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type ResearchConfig struct {
	// WaitSeconds is the flat delay before research results are retrieved.
	WaitSeconds int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Remote: RemoteConfig{
			BaseURL: "https://builder.empromptu.ai/api_tools",
		},
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Research: ResearchConfig{
			WaitSeconds: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/maiiam/config.json, with MAIIAM_* environment variables
// overriding file values. The remote bearer token is required; the other
// credentials default to empty and are sent as-is when set.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

// LoadUnchecked loads configuration without requiring the remote bearer
// token. Used for display before credentials are set.
func LoadUnchecked() Config {
	cfg := defaults()
	if err := applyBackend(&cfg, newFileBackend(configFilePath())); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v\n", err)
	}
	applyEnvOverrides(&cfg)
	return cfg
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Remote.BearerToken == "" {
		return Config{}, fmt.Errorf("missing required config: remote bearer token. Set it via environment variable MAIIAM_REMOTE_BEARER_TOKEN")
	}

	return cfg, nil
}
