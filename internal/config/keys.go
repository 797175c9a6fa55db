package config

import (
	"fmt"
	"os"
	"strconv"
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
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "remote.base_url", typ: kString, env: "MAIIAM_REMOTE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Remote.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Remote.BaseURL },
	},
	{
		key: "remote.bearer_token", typ: kString, env: "MAIIAM_REMOTE_BEARER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Remote.BearerToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Remote.BearerToken },
	},
	{
		key: "remote.app_id", typ: kString, env: "MAIIAM_REMOTE_APP_ID",
		apply:   func(cfg *Config, v any) { cfg.Remote.AppID = v.(string) },
		extract: func(cfg Config) any { return cfg.Remote.AppID },
	},
	{
		key: "remote.usage_key", typ: kString, env: "MAIIAM_REMOTE_USAGE_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Remote.UsageKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Remote.UsageKey },
	},
	{
		key: "server.port", typ: kInt, env: "MAIIAM_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MAIIAM_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "research.wait_seconds", typ: kInt, env: "MAIIAM_RESEARCH_WAIT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Research.WaitSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Research.WaitSeconds },
	},
	{
		key: "log.level", typ: kString, env: "MAIIAM_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
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
		v := os.Getenv(s.env)
		if v == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, v)
		case kInt:
			i, err := strconv.Atoi(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse %s=%q: %v. Using default value.\n", s.env, v, err)
				continue
			}
			s.apply(cfg, i)
		}
	}
}
