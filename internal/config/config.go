package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverMilvus = "milvus"
	DriverMemory = "memory"
)

// Config holds the pastq configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Auth       AuthConfig       `yaml:"auth"`
	MCP        MCPConfig        `yaml:"mcp"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
// Admin keys may also load, delete and drop questions.
type AuthConfig struct {
	APIKeys   []string `yaml:"api_keys"`
	AdminKeys []string `yaml:"admin_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StoreConfig holds document store connection settings.
type StoreConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, milvus, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	MilvusAddress    string   `yaml:"milvus_address"`
	MilvusUsername   string   `yaml:"milvus_username"`
	MilvusPassword   string   `yaml:"milvus_password"`
	MilvusDatabase   string   `yaml:"milvus_database"`
	Collection       string   `yaml:"collection"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	Cache               bool   `yaml:"cache"`
	MaxBatchSize        int    `yaml:"max_batch_size"`
}

// ExtractionConfig holds query extraction model settings.
// An empty APIKey or BaseURL falls back to the embedding provider's.
type ExtractionConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	RateLimit   float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	Burst       int     `yaml:"burst"`
	MinYearBS   int     `yaml:"min_year_bs"`
	MinYearAD   int     `yaml:"min_year_ad"`
}

// RetrievalConfig holds classifier and executor settings.
type RetrievalConfig struct {
	DefaultK          int   `yaml:"default_k"`
	MaxK              int   `yaml:"max_k"`
	OverFetch         int   `yaml:"over_fetch"`
	Threshold         int   `yaml:"metadata_only_threshold"`
	SubjectScoped     bool  `yaml:"subject_scoped"`
	PushDown          *bool `yaml:"push_down"` // default true
	StoreTimeoutMs    int   `yaml:"store_timeout_ms"`
	IncludeFilterInfo bool  `yaml:"include_filter_info"`
}

// IngestConfig holds dataset ingestion settings.
type IngestConfig struct {
	BatchSize   int `yaml:"batch_size"`
	Concurrency int `yaml:"concurrency"`
}

// ResilienceConfig holds retry and circuit breaker settings for store calls.
type ResilienceConfig struct {
	RetryMaxAttempts      int     `yaml:"retry_max_attempts"`
	RetryInitialBackoffMs int     `yaml:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int     `yaml:"retry_max_backoff_ms"`
	BreakerDisabled       bool    `yaml:"breaker_disabled"`
	BreakerMinRequests    uint32  `yaml:"breaker_min_requests"`
	BreakerFailureRatio   float64 `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeoutSec int     `yaml:"breaker_open_timeout_sec"`
}

// MCPConfig holds MCP tool server settings.
type MCPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	ToolName string `yaml:"tool_name"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML after ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverRedis
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "ioe_c_past_questions"
	}
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 10
	}
	if c.Store.HNSWM <= 0 {
		c.Store.HNSWM = 16
	}
	if c.Store.HNSWEFConstruct <= 0 {
		c.Store.HNSWEFConstruct = 200
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}

	if c.Extraction.APIKey == "" {
		c.Extraction.APIKey = c.Embedding.APIKey
	}
	if c.Extraction.BaseURL == "" {
		c.Extraction.BaseURL = c.Embedding.BaseURL
	}
	if c.Extraction.Model == "" {
		c.Extraction.Model = "gpt-4o-mini"
	}
	if c.Extraction.TimeoutSec <= 0 {
		c.Extraction.TimeoutSec = 30
	}
	if c.Extraction.Burst <= 0 {
		c.Extraction.Burst = 1
	}
	if c.Extraction.MinYearBS <= 0 {
		c.Extraction.MinYearBS = 2075
	}
	if c.Extraction.MinYearAD <= 0 {
		c.Extraction.MinYearAD = 2018
	}

	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 3
	}
	if c.Retrieval.MaxK <= 0 {
		c.Retrieval.MaxK = 20
	}
	if c.Retrieval.OverFetch <= 0 {
		c.Retrieval.OverFetch = 100
	}
	if c.Retrieval.Threshold <= 0 {
		c.Retrieval.Threshold = 2
	}
	if c.Retrieval.PushDown == nil {
		on := true
		c.Retrieval.PushDown = &on
	}
	if c.Retrieval.StoreTimeoutMs <= 0 {
		c.Retrieval.StoreTimeoutMs = 5000
	}

	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 64
	}
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}

	if c.MCP.ToolName == "" {
		c.MCP.ToolName = "get_past_questions"
	}
	if c.MCP.Endpoint == "" {
		c.MCP.Endpoint = "/mcp"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	switch c.Store.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Store.Addrs) == 0 {
			errs = append(errs, errors.New("store.addrs is required"))
		}
	case DriverMilvus:
		if c.Store.MilvusAddress == "" {
			errs = append(errs, errors.New("store.milvus_address is required"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf(
			"store.driver must be one of redis, valkey, milvus, memory, got %q", c.Store.Driver))
	}
	if c.Retrieval.DefaultK > c.Retrieval.MaxK {
		errs = append(errs, fmt.Errorf("retrieval.default_k (%d) exceeds retrieval.max_k (%d)",
			c.Retrieval.DefaultK, c.Retrieval.MaxK))
	}
	if c.Extraction.Temperature < 0 || c.Extraction.Temperature > 2 {
		errs = append(errs, fmt.Errorf("extraction.temperature must be between 0 and 2, got %v",
			c.Extraction.Temperature))
	}
	if c.Extraction.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("extraction.rate_limit_rps must not be negative, got %v",
			c.Extraction.RateLimit))
	}
	if r := c.Resilience.BreakerFailureRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("resilience.breaker_failure_ratio must be between 0 and 1, got %v", r))
	}
	if !strings.HasPrefix(c.MCP.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("mcp.endpoint must start with /, got %q", c.MCP.Endpoint))
	}
	return errors.Join(errs...)
}

// PushDownEnabled reports whether compiled filters are sent to the store.
func (c RetrievalConfig) PushDownEnabled() bool {
	return c.PushDown == nil || *c.PushDown
}

// StoreTimeout is the per-attempt store call deadline.
func (c RetrievalConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// Timeout is the extraction call deadline.
func (c ExtractionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
