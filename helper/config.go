package helper

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderLocal  = "local"
)

// ServiceConfiguration holds the upstream model and runtime settings of the service.
type ServiceConfiguration struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string

	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	ChatModel          string

	EmbedTimeout  time.Duration
	ChatTimeout   time.Duration
	UpstreamRate  float64
	UpstreamBurst int

	CacheTTL        time.Duration
	CacheMaxEntries int

	HTTPAddr    string
	PromptsPath string
	LogLevel    string

	GeoJSONURL   string
	LoadInterval time.Duration
}

// DefaultServiceConfiguration returns the baked-in defaults.
func DefaultServiceConfiguration() *ServiceConfiguration {
	return &ServiceConfiguration{
		EmbeddingProvider:  EmbeddingProviderOpenAI,
		EmbeddingModel:     "text-embedding-ada-002",
		EmbeddingDimension: 1536,
		ChatModel:          "gpt-4",
		EmbedTimeout:       15 * time.Second,
		ChatTimeout:        30 * time.Second,
		UpstreamRate:       10,
		UpstreamBurst:      5,
		CacheTTL:           time.Hour,
		CacheMaxEntries:    10000,
		HTTPAddr:           ":8000",
		LogLevel:           "info",
		LoadInterval:       time.Hour,
	}
}

// NewServiceConfiguration loads an optional .env file and reads the service
// configuration from the environment on top of the defaults.
func NewServiceConfiguration() (*ServiceConfiguration, error) {
	_ = godotenv.Load()

	d := DefaultServiceConfiguration()
	config := &ServiceConfiguration{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		EmbeddingProvider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", d.EmbeddingProvider)),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", d.EmbeddingModel),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", d.EmbeddingDimension),
		ChatModel:          getEnv("CHAT_MODEL", d.ChatModel),
		EmbedTimeout:       getEnvDuration("EMBED_TIMEOUT", d.EmbedTimeout),
		ChatTimeout:        getEnvDuration("CHAT_TIMEOUT", d.ChatTimeout),
		UpstreamRate:       getEnvFloat("UPSTREAM_RATE", d.UpstreamRate),
		UpstreamBurst:      getEnvInt("UPSTREAM_BURST", d.UpstreamBurst),
		CacheTTL:           getEnvDuration("CACHE_TTL", d.CacheTTL),
		CacheMaxEntries:    getEnvInt("CACHE_MAX_ENTRIES", d.CacheMaxEntries),
		HTTPAddr:           getEnv("HTTP_ADDR", d.HTTPAddr),
		PromptsPath:        os.Getenv("PROMPTS_PATH"),
		LogLevel:           getEnv("LOG_LEVEL", d.LogLevel),
		GeoJSONURL:         os.Getenv("GEOJSON_URL"),
		LoadInterval:       getEnvDuration("LOAD_INTERVAL", d.LoadInterval),
	}

	err := config.Validate()
	if err != nil {
		return nil, NewError("service configuration", err)
	}

	return config, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *ServiceConfiguration) Validate() error {
	switch c.EmbeddingProvider {
	case EmbeddingProviderOpenAI:
	case EmbeddingProviderLocal:
	default:
		return fmt.Errorf("unsupported embedding provider %q (use %q or %q)", c.EmbeddingProvider, EmbeddingProviderOpenAI, EmbeddingProviderLocal)
	}
	if len(strings.TrimSpace(c.OpenAIAPIKey)) == 0 {
		return fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if c.UpstreamRate <= 0 || c.UpstreamBurst <= 0 {
		return fmt.Errorf("upstream rate and burst must be positive")
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.CacheMaxEntries)
	}
	return nil
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
