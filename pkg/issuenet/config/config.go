// Package config loads the run configuration and builds the text
// processing components it describes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aigent/issuenet/pkg/issuenet/cluster"
	"github.com/aigent/issuenet/pkg/issuenet/corpus"
	"github.com/aigent/issuenet/pkg/issuenet/dedup"
	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/naming"
	"github.com/aigent/issuenet/pkg/issuenet/network"
	"github.com/aigent/issuenet/pkg/issuenet/persist"
)

// Config is the whole run configuration.
type Config struct {
	Input        Input          `yaml:"input"`
	Dedup        dedup.Config   `yaml:"dedup"`
	Cluster      cluster.Config `yaml:"cluster"`
	Naming       naming.Config  `yaml:"naming"`
	Network      network.Config `yaml:"network"`
	Persist      persist.Config `yaml:"persist"`
	Store        Store          `yaml:"store"`
	Report       Report         `yaml:"report"`
	StoplistPath string         `yaml:"stoplist_path"`
	DictPath     string         `yaml:"dict_path"`
	Logging      Logging        `yaml:"logging"`
	Metrics      Metrics        `yaml:"metrics"`

	// Credentials only ever come from the environment.
	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

// Input describes the corpus file.
type Input struct {
	Columns  corpus.Columns `yaml:"columns"`
	Timezone string         `yaml:"timezone"`
	Layouts  []string       `yaml:"layouts"`
}

// Store selects the storage backend.
type Store struct {
	Driver string `yaml:"driver"` // sqlite, postgres or memory
	DSN    string `yaml:"dsn"`    // file path for sqlite
}

// Report configures the ranked-issue CSV.
type Report struct {
	Path            string `yaml:"path"`
	Representatives int    `yaml:"representatives"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Input: Input{
			Columns:  corpus.DefaultColumns(),
			Timezone: "Asia/Seoul",
		},
		Dedup:   dedup.DefaultConfig(),
		Cluster: cluster.DefaultConfig(),
		Naming:  naming.DefaultConfig(),
		Network: network.DefaultConfig(),
		Persist: persist.DefaultConfig(),
		Store:   Store{Driver: "sqlite", DSN: "issuenet.db"},
		Report:  Report{Representatives: 10},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), a .env file in the working directory if
// present, and environment variables, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
		}
	}
	if err := loadDotenv(".env"); err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotenv sets variables from file without overriding ones already in
// the environment. A missing file is fine.
func loadDotenv(file string) error {
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read via getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("DATABASE_URL"); v != "" {
		c.Store.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			c.Store.Driver = "postgres"
		}
	}
	if v := getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := getenv("NAMING_PROVIDER"); v != "" {
		c.Naming.Provider = strings.ToLower(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	c.GeminiAPIKey = getenv("GEMINI_API_KEY")
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = getenv("GOOGLE_API_KEY")
	}
	c.OpenAIAPIKey = getenv("OPENAI_API_KEY")

	switch c.Naming.Provider {
	case "gemini":
		c.Naming.APIKey = c.GeminiAPIKey
	case "openai":
		c.Naming.APIKey = c.OpenAIAPIKey
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if _, err := c.Location(); err != nil {
		return invalid("input.timezone %q: %v", c.Input.Timezone, err)
	}
	if t := c.Dedup.Threshold; t <= 0 || t > 1 {
		return invalid("dedup.threshold %v outside (0, 1]", t)
	}
	if c.Cluster.MinClusterSize < 2 {
		return invalid("cluster.min_cluster_size %d < 2", c.Cluster.MinClusterSize)
	}
	if c.Cluster.MinSamples < 1 {
		return invalid("cluster.min_samples %d < 1", c.Cluster.MinSamples)
	}
	if c.Cluster.TopN < 1 {
		return invalid("cluster.top_n %d < 1", c.Cluster.TopN)
	}
	switch c.Cluster.Embedder {
	case "tfidf":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return invalid("cluster.embedder gemini needs GEMINI_API_KEY")
		}
	default:
		return invalid("cluster.embedder %q", c.Cluster.Embedder)
	}
	switch c.Naming.Provider {
	case "gemini", "openai", "none":
	default:
		return invalid("naming.provider %q", c.Naming.Provider)
	}
	if c.Naming.Delay < 0 || c.Naming.Timeout < 0 {
		return invalid("naming durations must not be negative")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return invalid("store.dsn is empty")
		}
	case "memory":
	default:
		return invalid("store.driver %q", c.Store.Driver)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return invalid("logging.format %q", c.Logging.Format)
	}
	return c.Persist.Validate()
}

// Location resolves the input timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Input.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Input.Timezone)
}

// CorpusOptions returns loader options for the configured input.
func (c Config) CorpusOptions() (corpus.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return corpus.Options{}, err
	}
	return corpus.Options{Columns: c.Input.Columns, Location: loc, Layouts: c.Input.Layouts}, nil
}
