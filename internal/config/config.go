package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the moodcheck configuration. Each component receives its own
// section through its constructor.
type Config struct {
	Data       DataConfig       `json:"data" yaml:"data" toml:"data"`
	Features   FeaturesConfig   `json:"features" yaml:"features" toml:"features"`
	Split      SplitConfig      `json:"split" yaml:"split" toml:"split"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier" toml:"classifier"`
	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer" toml:"normalizer"`
	Eval       EvalConfig       `json:"eval" yaml:"eval" toml:"eval"`
}

// DataConfig holds file locations.
type DataConfig struct {
	Input    string `json:"input" yaml:"input" toml:"input"`             // JSONL or CSV source records
	Store    string `json:"store" yaml:"store" toml:"store"`             // SQLite database for runs
	EventLog string `json:"event_log" yaml:"event_log" toml:"event_log"` // JSONL pipeline events
	LogDir   string `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
}

// FeaturesConfig sizes the hashed feature space.
type FeaturesConfig struct {
	Dimension int `json:"dimension" yaml:"dimension" toml:"dimension"`
}

// SplitConfig controls the training/validation split.
type SplitConfig struct {
	Ratios []float64 `json:"ratios" yaml:"ratios" toml:"ratios"`
	Seed   *uint64   `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"` // nil = unseeded
}

// ClassifierConfig points at the prediction service.
type ClassifierConfig struct {
	Endpoint  string  `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Model     string  `json:"model" yaml:"model" toml:"model"`
	TimeoutMs int     `json:"timeout_ms" yaml:"timeout_ms" toml:"timeout_ms"`
	RPS       float64 `json:"rps" yaml:"rps" toml:"rps"` // <= 0 = unlimited
}

// Timeout returns the per-call timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// NormalizerConfig points at the text normalization service. An empty
// endpoint means identity normalization.
type NormalizerConfig struct {
	Endpoint  string  `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	TimeoutMs int     `json:"timeout_ms" yaml:"timeout_ms" toml:"timeout_ms"`
	RPS       float64 `json:"rps" yaml:"rps" toml:"rps"`
}

// Timeout returns the per-call timeout.
func (c NormalizerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// EvalConfig holds batch execution settings.
type EvalConfig struct {
	Workers       int    `json:"workers" yaml:"workers" toml:"workers"`                      // <= 0 = one per CPU
	FailurePolicy string `json:"failure_policy" yaml:"failure_policy" toml:"failure_policy"` // "drop" or "count-incorrect"
	Malformed     string `json:"malformed" yaml:"malformed" toml:"malformed"`                // "drop" or "fail"
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Data: DataConfig{
			Store:    filepath.Join(dir, "moodcheck.db"),
			EventLog: filepath.Join(dir, "events.jsonl"),
			LogDir:   filepath.Join(dir, "logs"),
		},
		Features: FeaturesConfig{
			Dimension: 1 << 20,
		},
		Split: SplitConfig{
			Ratios: []float64{0.85, 0.15},
		},
		Classifier: ClassifierConfig{
			Endpoint:  "http://localhost:8080",
			Model:     "sentiment",
			TimeoutMs: 10000,
			RPS:       20,
		},
		Normalizer: NormalizerConfig{
			TimeoutMs: 10000,
			RPS:       20,
		},
		Eval: EvalConfig{
			FailurePolicy: "drop",
			Malformed:     "drop",
		},
	}
}

// Dir returns the moodcheck home directory.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".moodcheck")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads config from path, or returns defaults when the file does not
// exist. The format follows the extension: .json, .yaml/.yml or .toml.
// Fields absent from the file keep their defaults. Environment overrides
// are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		return nil, fmt.Errorf("config: unsupported format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", filepath.Base(path), err)
	}

	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// Save writes config to path as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AutoPopulateFromEnv applies MOODCHECK_* environment overrides.
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("MOODCHECK_CLASSIFIER_URL"); v != "" {
		c.Classifier.Endpoint = v
	}
	if v := os.Getenv("MOODCHECK_MODEL"); v != "" {
		c.Classifier.Model = v
	}
	if v := os.Getenv("MOODCHECK_NORMALIZER_URL"); v != "" {
		c.Normalizer.Endpoint = v
	}
	if v := os.Getenv("MOODCHECK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Eval.Workers = n
		}
	}
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error
	if c.Features.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("features.dimension must be positive, got %d", c.Features.Dimension))
	}
	if len(c.Split.Ratios) == 0 {
		errs = append(errs, errors.New("split.ratios is empty"))
	}
	sum := 0.0
	for _, r := range c.Split.Ratios {
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			errs = append(errs, fmt.Errorf("split.ratios: invalid ratio %v", r))
		}
		sum += r
	}
	if len(c.Split.Ratios) > 0 && math.Abs(sum-1) > 1e-9 {
		errs = append(errs, fmt.Errorf("split.ratios must sum to 1, got %v", sum))
	}
	switch c.Eval.FailurePolicy {
	case "", "drop", "count-incorrect":
	default:
		errs = append(errs, fmt.Errorf("eval.failure_policy: unknown policy %q", c.Eval.FailurePolicy))
	}
	switch c.Eval.Malformed {
	case "", "drop", "fail":
	default:
		errs = append(errs, fmt.Errorf("eval.malformed: unknown policy %q", c.Eval.Malformed))
	}
	if c.Classifier.TimeoutMs < 0 || c.Normalizer.TimeoutMs < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
