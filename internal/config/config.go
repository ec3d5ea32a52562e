// Package config resolves the Kleiō settings from their layered sources.
//
// Precedence, low to high: built-in defaults, system and user
// configuration files, KLEIO_* environment variables, then the file
// passed with --config. Command-line flags are applied by the CLI on top
// of the resolved result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Database selects and addresses the shared trial store.
type Database struct {
	// Type is one of "file", "redis" or "memory".
	Type string `yaml:"type" mapstructure:"type"`
	// Name is the store namespace: base directory for the file backend,
	// key prefix for redis.
	Name string `yaml:"name" mapstructure:"name"`
	// Address is host:port for redis; unused by the file backend.
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// Config is the resolved Kleiō configuration.
type Config struct {
	Database Database `yaml:"database" mapstructure:"database"`

	// WorkingDir is where consumers create per-trial working directories.
	WorkingDir string `yaml:"working_dir" mapstructure:"working_dir"`

	// HeartbeatInterval is how often a running consumer refreshes its
	// claim on the trial.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`

	// HostEnvVars lists environment variables captured into the host
	// fingerprint and compared on resume.
	HostEnvVars []string `yaml:"host_env_vars" mapstructure:"host_env_vars"`

	// Debug switches to the in-memory store, leaving no trace behind.
	Debug bool `yaml:"debug" mapstructure:"debug"`
}

// Environment variables overriding file configuration.
const (
	EnvDBType    = "KLEIO_DB_TYPE"
	EnvDBName    = "KLEIO_DB_NAME"
	EnvDBAddress = "KLEIO_DB_ADDRESS"
	EnvDebug     = "KLEIO_DEBUG_MODE"
	EnvTrialID   = "KLEIO_TRIAL_ID"
	EnvVerbosity = "KLEIO_VERBOSITY"
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Database: Database{
			Type: "file",
			Name: ".kleio",
		},
		WorkingDir:        ".",
		HeartbeatInterval: 10 * time.Second,
	}
}

// defaultFilePaths returns the standard config file locations, in
// ascending precedence.
func defaultFilePaths() []string {
	paths := []string{filepath.Join("/etc", "kleio", "kleio_config.yaml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "kleio", "kleio_config.yaml"))
	}
	return paths
}

// Resolve builds the configuration from every layer. explicitFile is the
// --config argument; empty means none.
func Resolve(explicitFile string) (Config, error) {
	merged := map[string]any{}

	for _, path := range defaultFilePaths() {
		layer, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		merged = Merge(merged, layer)
	}

	merged = Merge(merged, envLayer())

	if explicitFile != "" {
		layer, err := loadFile(explicitFile)
		if err != nil {
			return Config{}, err
		}
		if layer == nil {
			return Config{}, fmt.Errorf("config file not found: %s", explicitFile)
		}
		merged = Merge(merged, layer)
	}

	cfg := Defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// loadFile parses one YAML layer. A missing file yields a nil layer.
func loadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var layer map[string]any
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return layer, nil
}

// envLayer builds the configuration layer from KLEIO_* variables.
func envLayer() map[string]any {
	db := map[string]any{}
	if v := os.Getenv(EnvDBType); v != "" {
		db["type"] = v
	}
	if v := os.Getenv(EnvDBName); v != "" {
		db["name"] = v
	}
	if v := os.Getenv(EnvDBAddress); v != "" {
		db["address"] = v
	}

	layer := map[string]any{}
	if len(db) > 0 {
		layer["database"] = db
	}
	if v := os.Getenv(EnvDebug); v == "1" || v == "true" {
		layer["debug"] = true
	}
	return layer
}

// Merge overlays b onto a, recursing into nested maps. Values from b win;
// nested maps are merged rather than replaced.
func Merge(a, b map[string]any) map[string]any {
	if a == nil {
		a = map[string]any{}
	}
	for key, value := range b {
		if sub, ok := value.(map[string]any); ok {
			if prior, ok := a[key].(map[string]any); ok {
				a[key] = Merge(prior, sub)
				continue
			}
		}
		if value != nil {
			a[key] = value
		}
	}
	return a
}
