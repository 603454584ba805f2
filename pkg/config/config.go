// Package config loads daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// such as "10s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all knograph daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Graph     GraphConfig     `yaml:"graph"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Assembly  AssemblyConfig  `yaml:"assembly"`
	Trace     TraceConfig     `yaml:"trace"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type GraphConfig struct {
	// Path is the SQLite database for the reference graph store.
	Path string `yaml:"path"`
}

type RetrievalConfig struct {
	DecayRate        float64  `yaml:"decay_rate"`
	PruningThreshold float64  `yaml:"pruning_threshold"`
	MaxPaths         int      `yaml:"max_paths"`
	MaxDepth         int      `yaml:"max_depth"`
	UpstreamTimeout  Duration `yaml:"upstream_timeout"`
}

type CacheConfig struct {
	FastBytes      int64   `yaml:"fast_bytes"`
	SlowBytes      int64   `yaml:"slow_bytes"`
	SlowPath       string  `yaml:"slow_path"`
	PromoteAfter   int64   `yaml:"promote_after"`
	HighImportance float64 `yaml:"high_importance"`
	QueryWindow    int     `yaml:"query_window"`
}

type AssemblyConfig struct {
	MaxTokens      int `yaml:"max_tokens"`
	ReservedTokens int `yaml:"reserved_tokens"`
}

type TraceConfig struct {
	Path string `yaml:"path"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38080,
		},
		Graph: GraphConfig{
			Path: "knograph.db",
		},
		Retrieval: RetrievalConfig{
			DecayRate:        0.85,
			PruningThreshold: 0.01,
			MaxPaths:         5,
			MaxDepth:         3,
			UpstreamTimeout:  Duration(10 * time.Second),
		},
		Cache: CacheConfig{
			FastBytes:      32 << 20,
			SlowBytes:      256 << 20,
			SlowPath:       "knograph-cache.db",
			PromoteAfter:   5,
			HighImportance: 0.6,
			QueryWindow:    10,
		},
		Assembly: AssemblyConfig{
			MaxTokens:      4096,
			ReservedTokens: 512,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
