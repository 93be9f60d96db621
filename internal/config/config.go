// Package config holds process and pipeline configuration. Values layer as
// defaults, then an optional YAML file, then RALLY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config contains everything the CLI and server need.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: json or text.
	LogFormat string `koanf:"log_format"`

	// Addr is the HTTP listen address for the serve command.
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database location.
	DBPath string `koanf:"db_path"`

	// Workers bounds the processing pool; QueueSize bounds pending jobs.
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`

	// InterShotGapMs is the silence that implies an undetected point end.
	InterShotGapMs int64 `koanf:"inter_shot_gap_ms"`

	// PreEventFrames/PostEventFrames size the replay window derived for
	// events whose producer did not report one.
	PreEventFrames  int `koanf:"pre_event_frames"`
	PostEventFrames int `koanf:"post_event_frames"`

	// Composite rally score weights: w_len*length + w_speed*avgSpeed +
	// w_dir*directionChanges.
	WeightLength           float64 `koanf:"weight_length"`
	WeightSpeed            float64 `koanf:"weight_speed"`
	WeightDirectionChanges float64 `koanf:"weight_direction_changes"`

	// Top-rally qualification thresholds.
	TopRallyMinLength      int     `koanf:"top_rally_min_length"`
	TopRallySpeedThreshold float64 `koanf:"top_rally_speed_threshold"`

	// HighlightLimit caps each highlight list.
	HighlightLimit int `koanf:"highlight_limit"`

	// LowConfidenceThreshold flags (never drops) events below it.
	LowConfidenceThreshold float64 `koanf:"low_confidence_threshold"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "json",
		Addr:                   ":8080",
		DBPath:                 defaultDBPath(),
		Workers:                runtime.NumCPU(),
		QueueSize:              64,
		InterShotGapMs:         3000,
		PreEventFrames:         4,
		PostEventFrames:        12,
		WeightLength:           1.0,
		WeightSpeed:            0.5,
		WeightDirectionChanges: 0.25,
		TopRallyMinLength:      8,
		TopRallySpeedThreshold: 45.0,
		HighlightLimit:         3,
		LowConfidenceThreshold: 0.35,
	}
}

// Load layers defaults, an optional YAML file, and RALLY_* env vars.
// An empty path falls back to the RALLY_CONFIG env var; no file is fine.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("RALLY_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// RALLY_INTER_SHOT_GAP_MS -> inter_shot_gap_ms
	envProvider := env.Provider("RALLY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RALLY_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.InterShotGapMs <= 0 {
		return errors.New("inter_shot_gap_ms must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.QueueSize <= 0 {
		return errors.New("queue_size must be positive")
	}
	if c.HighlightLimit <= 0 {
		return errors.New("highlight_limit must be positive")
	}
	if c.WeightLength < 0 || c.WeightSpeed < 0 || c.WeightDirectionChanges < 0 {
		return errors.New("composite weights must not be negative")
	}
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 1 {
		return errors.New("low_confidence_threshold must be in [0,1]")
	}
	if c.PreEventFrames < 0 || c.PostEventFrames < 0 {
		return errors.New("event window frames must not be negative")
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".rallymetrics", "matches.db")
}
