package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/persist"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "STORE_DRIVER", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"OPENAI_API_KEY", "NAMING_PROVIDER", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "issuenet.yaml", `
dedup:
  threshold: 0.85
cluster:
  min_cluster_size: 5
  top_n: 10
naming:
  provider: none
  delay: 250ms
  timeout: 5s
persist:
  topic: 경제
  count_mode: stored
  publisher_codes:
    오마이뉴스: "047"
store:
  driver: sqlite
  dsn: /tmp/x.db
input:
  columns:
    body: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Dedup.Threshold)
	assert.Equal(t, 300, cfg.Dedup.PrefixChars, "unset fields keep defaults")
	assert.Equal(t, 5, cfg.Cluster.MinClusterSize)
	assert.Equal(t, 3, cfg.Cluster.MinSamples)
	assert.Equal(t, 250*time.Millisecond, cfg.Naming.Delay)
	assert.Equal(t, 5*time.Second, cfg.Naming.Timeout)
	assert.Equal(t, persist.CountStored, cfg.Persist.CountMode)
	assert.Equal(t, "047", cfg.Persist.PublisherCodes["오마이뉴스"])
	assert.Equal(t, "028", cfg.Persist.PublisherCodes["한겨레"], "default codes are kept")
	assert.Equal(t, "text", cfg.Input.Columns.Body)
	assert.Equal(t, "title", cfg.Input.Columns.Title)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/issues")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/issues", cfg.Store.DSN)
	assert.Equal(t, "g-key", cfg.Naming.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Setenv("NAMING_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("STORE_DRIVER", "memory")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Naming.Provider)
	assert.Equal(t, "o-key", cfg.Naming.APIKey)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestDotenvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	// set-but-empty counts as present for godotenv
	os.Unsetenv("GEMINI_API_KEY")
	writeFile(t, ".", ".env", "GEMINI_API_KEY=from-file\nLOG_LEVEL=warn\n")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.GeminiAPIKey)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(*Config){
		"threshold":   func(c *Config) { c.Dedup.Threshold = 1.5 },
		"min size":    func(c *Config) { c.Cluster.MinClusterSize = 1 },
		"embedder":    func(c *Config) { c.Cluster.Embedder = "bert" },
		"gemini key":  func(c *Config) { c.Cluster.Embedder = "gemini" },
		"provider":    func(c *Config) { c.Naming.Provider = "llama" },
		"driver":      func(c *Config) { c.Store.Driver = "mysql" },
		"empty dsn":   func(c *Config) { c.Store.DSN = "" },
		"timezone":    func(c *Config) { c.Input.Timezone = "Mars/Olympus" },
		"count mode":  func(c *Config) { c.Persist.CountMode = "maybe" },
		"log format":  func(c *Config) { c.Logging.Format = "xml" },
		"neg timeout": func(c *Config) { c.Naming.Timeout = -time.Second },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), internalerr.ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "bad.yaml", "dedup: [1, 2\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}
