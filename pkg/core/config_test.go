package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/core"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name: "valid config with SQLite",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "sqlite",
				"SQLITE_PATH":       "./test.db",
				"LLM_PROVIDER":      "openai",
				"LLM_API_KEY":       "test-key",
				"LLM_MODEL":         "gpt-4o-mini",
			},
		},
		{
			name: "valid config with PostgreSQL and Ollama",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "postgres",
				"POSTGRES_PORT":     "5433",
				"LLM_PROVIDER":      "ollama",
				"LLM_MODEL":         "llama3",
				"SEARCH_PROVIDER":   "none",
			},
		},
		{
			name: "invalid port",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "oceanbase",
				"OCEANBASE_PORT":    "not-a-port",
			},
			wantErr: true,
		},
		{
			name: "invalid timeout",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "sqlite",
				"WEATHER_TIMEOUT":   "soon",
			},
			wantErr: true,
		},
		{
			name: "invalid app mapping",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "sqlite",
				"APP_MAPPING":       "calculator",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := core.LoadConfigFromEnv()
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			assert.Equal(t, tt.envVars["DATABASE_PROVIDER"], config.Database.Provider)
			assert.Equal(t, tt.envVars["LLM_PROVIDER"], config.LLM.Provider)
		})
	}
}

func TestLoadConfigFromEnv_Details(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("LLM_PROVIDER", "deepseek")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("SEARCH_TIMEOUT", "3s")
	t.Setenv("APP_MAPPING", "calculator=gnome-calculator;docs=https://docs.example.com")
	t.Setenv("AUTH_TOKENS", "secret=user_001")
	t.Setenv("SYSTEM_DRY_RUN", "true")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5433, config.Database.Config["port"])
	assert.Equal(t, "disable", config.Database.Config["ssl_mode"])
	assert.InDelta(t, 0.2, config.LLM.Temperature, 1e-9)
	assert.Equal(t, 3*time.Second, config.Timeouts.Search.Std())
	assert.Equal(t, "https://docs.example.com", config.System.AppMapping["docs"])
	assert.Equal(t, "user_001", config.Auth.Tokens["secret"])
	assert.True(t, config.System.DryRun)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"database": {"provider": "sqlite", "config": {"db_path": "./trinity.db"}},
		"llm": {"provider": "openai", "api_key": "k", "model": "gpt-4o-mini"},
		"search": {"provider": "duckduckgo", "cache_size": 64, "cache_ttl": "10m"},
		"clarify": {"provider": "memory", "ttl": "15m"},
		"timeouts": {"generate": "30s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	config, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", config.Database.Provider)
	assert.Equal(t, "./trinity.db", config.Database.Config["db_path"])
	assert.Equal(t, 64, config.Search.CacheSize)
	assert.Equal(t, 10*time.Minute, config.Search.CacheTTL.Std())
	assert.Equal(t, 15*time.Minute, config.Clarify.TTL.Std())
	assert.Equal(t, 30*time.Second, config.Timeouts.Generate.Std())
	assert.NoError(t, config.Validate())

	_, err = core.LoadConfigFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database:
  provider: postgres
  config:
    host: db.internal
    port: 5432
llm:
  provider: ollama
  model: llama3
system:
  dry_run: true
  app_mapping:
    calculator: gnome-calculator
timeouts:
  weather: 4s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	config, err := core.LoadConfigFromYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", config.Database.Provider)
	assert.Equal(t, "db.internal", config.Database.Config["host"])
	assert.Equal(t, "gnome-calculator", config.System.AppMapping["calculator"])
	assert.True(t, config.System.DryRun)
	assert.Equal(t, 4*time.Second, config.Timeouts.Weather.Std())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *core.Config {
		return &core.Config{
			Database: core.DatabaseConfig{Provider: "sqlite"},
			LLM:      core.LLMConfig{Provider: "openai", APIKey: "k"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*core.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*core.Config) {}},
		{name: "unknown database", mutate: func(c *core.Config) { c.Database.Provider = "mongo" }, wantErr: true},
		{name: "missing llm", mutate: func(c *core.Config) { c.LLM.Provider = "" }, wantErr: true},
		{name: "unknown search", mutate: func(c *core.Config) { c.Search.Provider = "bing" }, wantErr: true},
		{name: "google without key", mutate: func(c *core.Config) { c.Search.Provider = "google" }, wantErr: true},
		{name: "google with key", mutate: func(c *core.Config) {
			c.Search = core.SearchConfig{Provider: "google", APIKey: "k", EngineID: "cx"}
		}},
		{name: "redis without url", mutate: func(c *core.Config) { c.Clarify.Provider = "redis" }, wantErr: true},
		{name: "unknown extractor", mutate: func(c *core.Config) { c.Extractor.Provider = "spacy" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDuration_Text(t *testing.T) {
	var d core.Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}
