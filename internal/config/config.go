package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Generation service
	GenerationProvider    string
	OllamaBaseURL         string
	OllamaModel           string
	GeminiAPIKey          string
	GeminiModel           string
	GenerationConcurrency int

	// Reference lookup
	ReferenceBaseURL  string
	ReferenceCacheTTL time.Duration

	// Storage
	StoragePath string
	MaxUploadMB int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		MigrationsDir:         getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:              mustGetEnv("REDIS_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		GenerationProvider:    strings.ToLower(getEnvOrDefault("GENERATION_PROVIDER", ProviderOllama)),
		OllamaBaseURL:         getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:           getEnvOrDefault("OLLAMA_MODEL", "qwen2-vl:latest"),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GenerationConcurrency: getEnvAsIntOrDefault("GENERATION_CONCURRENCY", 5),
		ReferenceBaseURL:      getEnvOrDefault("REFERENCE_BASE_URL", "https://en.wikipedia.org"),
		ReferenceCacheTTL:     getEnvAsDurationOrDefault("REFERENCE_CACHE_TTL", 24*time.Hour),
		StoragePath:           getEnvOrDefault("STORAGE_PATH", "./uploads"),
		MaxUploadMB:           getEnvAsIntOrDefault("MAX_UPLOAD_MB", 50),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	switch c.GenerationProvider {
	case ProviderOllama:
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required for the ollama provider")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider)
	}
	if c.GenerationConcurrency < 1 {
		return fmt.Errorf("GENERATION_CONCURRENCY must be at least 1")
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be at least 1")
	}
	return nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
