// Package core provides the Trinity assistant client: intent dispatch, knowledge
// resolution, teaching, feedback and the greeting/statistics flows.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oceanbase/trinity-go/pkg/auth"
	"github.com/oceanbase/trinity-go/pkg/logger"
	"github.com/oceanbase/trinity-go/pkg/system"
)

// Config contains the complete configuration for a Trinity client.
//
// It includes settings for:
//   - persistent storage (knowledge, profiles, usage, interaction log)
//   - the text-generation provider
//   - web search, entity extraction, weather and music collaborators
//   - pending clarification storage
//   - per-collaborator timeouts
//
// Example:
//
//	config := &core.Config{
//	    Database: core.DatabaseConfig{
//	        Provider: "sqlite",
//	        Config:   map[string]interface{}{"db_path": "./trinity.db"},
//	    },
//	    LLM: core.LLMConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	    },
//	}
type Config struct {
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Search    SearchConfig    `json:"search" yaml:"search"`
	Extractor ExtractorConfig `json:"extractor" yaml:"extractor"`
	Weather   WeatherConfig   `json:"weather" yaml:"weather"`
	Music     MusicConfig     `json:"music" yaml:"music"`
	System    SystemConfig    `json:"system" yaml:"system"`
	Clarify   ClarifyConfig   `json:"clarify" yaml:"clarify"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Timeouts  TimeoutConfig   `json:"timeouts" yaml:"timeouts"`
	Log       logger.Config   `json:"log" yaml:"log"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
}

// DatabaseConfig selects and configures the storage backend.
//
// Supported providers: sqlite, postgres, oceanbase
//
// Example:
//
//	storeConfig := core.DatabaseConfig{
//	    Provider: "postgres",
//	    Config: map[string]interface{}{
//	        "host":     "localhost",
//	        "port":     5432,
//	        "user":     "postgres",
//	        "password": "secret",
//	        "db_name":  "trinity",
//	    },
//	}
type DatabaseConfig struct {
	// Provider is the backend name (sqlite, postgres, oceanbase).
	Provider string `json:"provider" yaml:"provider"`

	// Config contains provider-specific settings.
	// For SQLite: db_path, table_prefix
	// For OceanBase: host, port, user, password, db_name, table_prefix
	// For PostgreSQL: host, port, user, password, db_name, table_prefix, ssl_mode
	Config map[string]interface{} `json:"config" yaml:"config"`
}

// LLMConfig configures the text-generation provider.
//
// Supported providers: openai, deepseek, ollama
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	Model    string `json:"model" yaml:"model"`

	// BaseURL overrides the provider default (optional).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Temperature and MaxTokens tune answer synthesis (defaults 0.7 and 300).
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// SearchConfig configures the web search collaborator.
//
// Supported providers: google, duckduckgo, none
type SearchConfig struct {
	Provider string `json:"provider" yaml:"provider"`

	// APIKey and EngineID are required by google.
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	EngineID string `json:"engine_id,omitempty" yaml:"engine_id,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// CacheSize and CacheTTL bound the in-process result cache.
	// A zero size disables caching.
	CacheSize int      `json:"cache_size" yaml:"cache_size"`
	CacheTTL  Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// ExtractorConfig selects the entity extractor.
//
// Supported providers: rules, llm. The llm extractor falls back to rules.
type ExtractorConfig struct {
	Provider string `json:"provider" yaml:"provider"`
}

// WeatherConfig configures the WeatherAPI collaborator.
type WeatherConfig struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// MusicConfig configures the YouTube collaborator. Music is disabled without a key.
type MusicConfig struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// SystemConfig configures application launching and device control.
type SystemConfig struct {
	// AppMapping maps application names to executables or URLs.
	// Nil uses system.DefaultAppMapping.
	AppMapping map[string]string `json:"app_mapping,omitempty" yaml:"app_mapping,omitempty"`

	// DryRun logs launches and URL opens instead of performing them.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// Brightness is the initial display brightness in percent (default 50).
	Brightness int `json:"brightness,omitempty" yaml:"brightness,omitempty"`
}

// ClarifyConfig configures pending clarification storage.
//
// Supported providers: memory, redis
type ClarifyConfig struct {
	Provider string   `json:"provider" yaml:"provider"`
	RedisURL string   `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	TTL      Duration `json:"ttl" yaml:"ttl"`

	// SweepSpec is the cron spec for dropping expired in-memory entries.
	SweepSpec string `json:"sweep_spec,omitempty" yaml:"sweep_spec,omitempty"`
}

// AuthConfig maps bearer tokens to user ids for the HTTP adapter.
type AuthConfig struct {
	Tokens map[string]string `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// TimeoutConfig bounds every collaborator call. A timeout counts as
// "no result" for the calling stage.
type TimeoutConfig struct {
	Search   Duration `json:"search" yaml:"search"`
	Generate Duration `json:"generate" yaml:"generate"`
	Extract  Duration `json:"extract" yaml:"extract"`
	Weather  Duration `json:"weather" yaml:"weather"`
	Calendar Duration `json:"calendar" yaml:"calendar"`
	Launcher Duration `json:"launcher" yaml:"launcher"`
	Music    Duration `json:"music" yaml:"music"`
}

// HTTPConfig configures the HTTP adapter.
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Duration is a time.Duration read from strings such as "10s" or "1m30s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DefaultTimeouts are the per-collaborator timeouts used when unset.
var DefaultTimeouts = TimeoutConfig{
	Search:   Duration(10 * time.Second),
	Generate: Duration(60 * time.Second),
	Extract:  Duration(5 * time.Second),
	Weather:  Duration(10 * time.Second),
	Calendar: Duration(10 * time.Second),
	Launcher: Duration(5 * time.Second),
	Music:    Duration(10 * time.Second),
}

// withDefaults fills unset timeouts.
func (t TimeoutConfig) withDefaults() TimeoutConfig {
	pick := func(v, def Duration) Duration {
		if v > 0 {
			return v
		}
		return def
	}
	return TimeoutConfig{
		Search:   pick(t.Search, DefaultTimeouts.Search),
		Generate: pick(t.Generate, DefaultTimeouts.Generate),
		Extract:  pick(t.Extract, DefaultTimeouts.Extract),
		Weather:  pick(t.Weather, DefaultTimeouts.Weather),
		Calendar: pick(t.Calendar, DefaultTimeouts.Calendar),
		Launcher: pick(t.Launcher, DefaultTimeouts.Launcher),
		Music:    pick(t.Music, DefaultTimeouts.Music),
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, oceanbase, postgres)
//   - SQLITE_PATH, SQLITE_TABLE_PREFIX
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, OCEANBASE_DATABASE
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL, LLM_TEMPERATURE, LLM_MAX_TOKENS
//   - SEARCH_PROVIDER, GOOGLE_API_KEY, GOOGLE_SEARCH_ENGINE_ID, SEARCH_CACHE_SIZE, SEARCH_CACHE_TTL
//   - EXTRACTOR_PROVIDER (rules, llm)
//   - WEATHER_API_KEY, YOUTUBE_API_KEY
//   - APP_MAPPING ("name=path;..."), SYSTEM_DRY_RUN, SYSTEM_BRIGHTNESS
//   - CLARIFY_PROVIDER (memory, redis), REDIS_URL, CLARIFY_TTL, CLARIFY_SWEEP
//   - AUTH_TOKENS ("token=uid;...")
//   - SEARCH_TIMEOUT, GENERATE_TIMEOUT, EXTRACT_TIMEOUT, WEATHER_TIMEOUT,
//     CALENDAR_TIMEOUT, LAUNCHER_TIMEOUT, MUSIC_TIMEOUT
//   - LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, LOG_FILE
//   - HTTP_ADDR
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	dbConfig := make(map[string]interface{})

	switch provider {
	case "oceanbase":
		port, err := strconv.Atoi(getEnvOrDefault("OCEANBASE_PORT", "2881"))
		if err != nil {
			return nil, envError("OCEANBASE_PORT", err)
		}
		dbConfig = map[string]interface{}{
			"host":         getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":         port,
			"user":         getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password":     os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":      getEnvOrDefault("OCEANBASE_DATABASE", "trinity"),
			"table_prefix": os.Getenv("OCEANBASE_TABLE_PREFIX"),
		}
	case "sqlite":
		dbConfig = map[string]interface{}{
			"db_path":      getEnvOrDefault("SQLITE_PATH", "./trinity.db"),
			"table_prefix": os.Getenv("SQLITE_TABLE_PREFIX"),
		}
	case "postgres":
		port, err := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		if err != nil {
			return nil, envError("POSTGRES_PORT", err)
		}
		dbConfig = map[string]interface{}{
			"host":         getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":         port,
			"user":         getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":     os.Getenv("POSTGRES_PASSWORD"),
			"db_name":      getEnvOrDefault("POSTGRES_DATABASE", "trinity"),
			"table_prefix": os.Getenv("POSTGRES_TABLE_PREFIX"),
			"ssl_mode":     getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	}

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "openai")
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	switch llmProvider {
	case "deepseek":
		llmBaseURL = getEnvOrDefault("DEEPSEEK_LLM_BASE_URL", llmBaseURL)
	case "anthropic":
		llmBaseURL = getEnvOrDefault("ANTHROPIC_LLM_BASE_URL", llmBaseURL)
	case "ollama":
		llmBaseURL = getEnvOrDefault("OLLAMA_LLM_BASE_URL", llmBaseURL)
	}

	config := &Config{
		Database: DatabaseConfig{Provider: provider, Config: dbConfig},
		LLM: LLMConfig{
			Provider: llmProvider,
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  llmBaseURL,
		},
		Search: SearchConfig{
			Provider: getEnvOrDefault("SEARCH_PROVIDER", "duckduckgo"),
			APIKey:   os.Getenv("GOOGLE_API_KEY"),
			EngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
			Endpoint: os.Getenv("SEARCH_ENDPOINT"),
		},
		Extractor: ExtractorConfig{Provider: getEnvOrDefault("EXTRACTOR_PROVIDER", "rules")},
		Weather: WeatherConfig{
			APIKey:   os.Getenv("WEATHER_API_KEY"),
			Endpoint: os.Getenv("WEATHER_ENDPOINT"),
		},
		Music: MusicConfig{
			APIKey:   os.Getenv("YOUTUBE_API_KEY"),
			Endpoint: os.Getenv("YOUTUBE_ENDPOINT"),
		},
		System: SystemConfig{
			DryRun: os.Getenv("SYSTEM_DRY_RUN") == "true",
		},
		Clarify: ClarifyConfig{
			Provider:  getEnvOrDefault("CLARIFY_PROVIDER", "memory"),
			RedisURL:  os.Getenv("REDIS_URL"),
			SweepSpec: getEnvOrDefault("CLARIFY_SWEEP", "@every 5m"),
		},
		Log: logger.Config{
			Level:    getEnvOrDefault("LOG_LEVEL", "info"),
			Format:   getEnvOrDefault("LOG_FORMAT", "json"),
			Output:   getEnvOrDefault("LOG_OUTPUT", "stderr"),
			FilePath: os.Getenv("LOG_FILE"),
		},
		HTTP: HTTPConfig{Addr: getEnvOrDefault("HTTP_ADDR", ":8080")},
	}

	ints := []struct {
		key string
		dst *int
		def string
	}{
		{"LLM_MAX_TOKENS", &config.LLM.MaxTokens, "300"},
		{"SEARCH_CACHE_SIZE", &config.Search.CacheSize, "256"},
		{"SYSTEM_BRIGHTNESS", &config.System.Brightness, "50"},
	}
	for _, v := range ints {
		n, err := strconv.Atoi(getEnvOrDefault(v.key, v.def))
		if err != nil {
			return nil, envError(v.key, err)
		}
		*v.dst = n
	}

	temperature, err := strconv.ParseFloat(getEnvOrDefault("LLM_TEMPERATURE", "0.7"), 64)
	if err != nil {
		return nil, envError("LLM_TEMPERATURE", err)
	}
	config.LLM.Temperature = temperature

	durations := []struct {
		key string
		dst *Duration
		def string
	}{
		{"SEARCH_CACHE_TTL", &config.Search.CacheTTL, "30m"},
		{"CLARIFY_TTL", &config.Clarify.TTL, "30m"},
		{"SEARCH_TIMEOUT", &config.Timeouts.Search, "10s"},
		{"GENERATE_TIMEOUT", &config.Timeouts.Generate, "60s"},
		{"EXTRACT_TIMEOUT", &config.Timeouts.Extract, "5s"},
		{"WEATHER_TIMEOUT", &config.Timeouts.Weather, "10s"},
		{"CALENDAR_TIMEOUT", &config.Timeouts.Calendar, "10s"},
		{"LAUNCHER_TIMEOUT", &config.Timeouts.Launcher, "5s"},
		{"MUSIC_TIMEOUT", &config.Timeouts.Music, "10s"},
	}
	for _, v := range durations {
		if err := v.dst.UnmarshalText([]byte(getEnvOrDefault(v.key, v.def))); err != nil {
			return nil, envError(v.key, err)
		}
	}

	if raw, ok := os.LookupEnv("APP_MAPPING"); ok {
		mapping, err := system.ParseAppMapping(raw)
		if err != nil {
			return nil, envError("APP_MAPPING", err)
		}
		config.System.AppMapping = mapping
	}
	if raw := os.Getenv("AUTH_TOKENS"); raw != "" {
		tokens, err := auth.ParseTokens(raw)
		if err != nil {
			return nil, envError("AUTH_TOKENS", err)
		}
		config.Auth.Tokens = tokens
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewAssistantError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewAssistantError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// LoadConfigFromYAML loads configuration from a YAML file.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewAssistantError("LoadConfigFromYAML", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, NewAssistantError("LoadConfigFromYAML", err)
	}

	return &config, nil
}

// Validate checks that every provider is set to a supported value and that
// providers needing credentials have them.
func (c *Config) Validate() error {
	return c.validate(true, true)
}

// validate skips the database and llm checks for collaborators injected
// through ClientOptions.
func (c *Config) validate(needDatabase, needLLM bool) error {
	databases := []string{"sqlite", "postgres", "oceanbase"}
	if !needDatabase {
		databases = append(databases, "")
	}
	llms := []string{"openai", "deepseek", "anthropic", "ollama"}
	if !needLLM {
		llms = append(llms, "")
	}
	checks := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"database provider", c.Database.Provider, databases},
		{"llm provider", c.LLM.Provider, llms},
		{"search provider", c.Search.Provider, []string{"", "google", "duckduckgo", "none"}},
		{"extractor provider", c.Extractor.Provider, []string{"", "rules", "llm"}},
		{"clarify provider", c.Clarify.Provider, []string{"", "memory", "redis"}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return NewAssistantError("Validate", fmt.Errorf("%w: unsupported %s %q", ErrInvalidConfig, check.name, check.value))
		}
	}
	if c.Search.Provider == "google" && (c.Search.APIKey == "" || c.Search.EngineID == "") {
		return NewAssistantError("Validate", fmt.Errorf("%w: google search needs an api key and engine id", ErrInvalidConfig))
	}
	if c.Clarify.Provider == "redis" && c.Clarify.RedisURL == "" {
		return NewAssistantError("Validate", fmt.Errorf("%w: redis clarify store needs a url", ErrInvalidConfig))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func envError(key string, err error) error {
	return NewAssistantError("LoadConfigFromEnv", fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err))
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
