// File: internal/config/config.go
// Package config
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Layered configuration: struct defaults, then an optional YAML file, then
// CHAT_* environment variables. The merged result is validated before use.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/momentics/hioload-chat/internal/logging"
	"github.com/momentics/hioload-chat/server"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CHAT_LISTEN_ADDR.
	EnvPrefix = "CHAT_"
	// ConfigPathEnvVar names an explicit YAML file.
	ConfigPathEnvVar = "CHAT_CONFIG"
)

// DefaultConfigPaths are searched in order when CHAT_CONFIG is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/hioload-chat/config.yaml",
}

// logSection nests logging defaults under "log".
type logSection struct {
	Log logging.Config `koanf:"log"`
}

// Load reads configuration from the default sources.
func Load() (*server.Config, logging.Config, error) {
	path, err := findConfigFile()
	if err != nil {
		return nil, logging.Config{}, err
	}
	return LoadFile(path)
}

// LoadFile reads configuration with path as the YAML layer. An empty path
// skips the file layer.
func LoadFile(path string) (*server.Config, logging.Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(server.DefaultConfig(), "koanf"), nil); err != nil {
		return nil, logging.Config{}, fmt.Errorf("load server defaults: %w", err)
	}
	if err := k.Load(structs.Provider(logSection{Log: logging.DefaultConfig()}, "koanf"), nil); err != nil {
		return nil, logging.Config{}, fmt.Errorf("load log defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, logging.Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, logging.Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := &server.Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, logging.Config{}, fmt.Errorf("unmarshal server config: %w", err)
	}
	var logCfg logging.Config
	if err := k.Unmarshal("log", &logCfg); err != nil {
		return nil, logging.Config{}, fmt.Errorf("unmarshal log config: %w", err)
	}
	if err := Validate(cfg, logCfg); err != nil {
		return nil, logging.Config{}, err
	}
	return cfg, logCfg, nil
}

// Validate checks struct tag constraints on both sections.
func Validate(cfg *server.Config, logCfg logging.Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	if err := v.Struct(logCfg); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}
	return nil
}

// envKey maps CHAT_LISTEN_ADDR to listen_addr and CHAT_LOG_LEVEL to log.level.
// CHAT_CONFIG is not a setting and maps to "", which koanf skips.
func envKey(s string) string {
	if s == ConfigPathEnvVar {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "log_"); ok {
		return "log." + rest
	}
	return key
}

func findConfigFile() (string, error) {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s: %w", ConfigPathEnvVar, err)
		}
		return p, nil
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}
