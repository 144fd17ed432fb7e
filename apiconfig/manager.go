package apiconfig

import (
	"fmt"
	"strings"

	"poc-router/logging"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ROUTER_"

// DefaultConfig returns the config used when a field is absent from both the
// file and the environment. Stat test defaults match the protocol defaults
// the backends themselves assume.
func DefaultConfig() Config {
	return Config{
		Api: ApiConfig{
			Port:                  8080,
			RequestTimeoutSeconds: 20,
			HealthSweepSeconds:    5,
		},
		StatTest: StatTestConfig{
			DistThreshold:  0.02,
			PMismatch:      0.001,
			FraudThreshold: 0.01,
		},
		Consensus: ConsensusConfig{
			Slots: 64,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

type ConfigManager struct {
	config Config
}

// LoadConfig reads configuration in priority order: defaults, then the yaml
// file at path (optional, skipped when empty), then ROUTER_ environment
// variables (ROUTER_API_PORT -> api.port).
func LoadConfig(path string) (*ConfigManager, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	return newManagerFromKoanf(k)
}

// LoadConfigBytes parses configuration from raw yaml. Used by tests.
func LoadConfigBytes(data []byte) (*ConfigManager, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return newManagerFromKoanf(k)
}

func newManagerFromKoanf(k *koanf.Koanf) (*ConfigManager, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if problems := ValidateBackends(cfg.Backends); len(problems) > 0 {
		return nil, fmt.Errorf("invalid backend config: %s", strings.Join(problems, "; "))
	}

	logging.Info("Loaded config", logging.Config,
		"port", cfg.Api.Port,
		"backends", len(cfg.Backends),
		"consensusSlots", cfg.Consensus.Slots)

	return &ConfigManager{config: cfg}, nil
}

func (m *ConfigManager) GetConfig() Config {
	return m.config
}

func (m *ConfigManager) GetBackends() []BackendConfig {
	return m.config.Backends
}
