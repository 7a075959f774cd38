package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Backend string

const (
	BackendGeminiAPI Backend = "gemini-api"
	BackendVertex    Backend = "vertex"
)

type Config struct {
	Port string

	// APIKey protects the HTTP surface (x-api-key header).
	APIKey string

	Backend      Backend
	GoogleAPIKey string // gemini-api backend
	GCPProjectID string // vertex backend
	GCPLocation  string // vertex backend

	DefaultModel     string
	DefaultPreprompt string

	UploadDir       string
	UpstreamTimeout time.Duration

	UseMockLLM bool
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

// Load reads .env (if present) and all env vars and builds the config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:   getEnv("PORT", "3000"),
		APIKey: getEnv("API_KEY", ""),

		GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
		GCPProjectID: getEnv("GCP_PROJECT", ""),
		GCPLocation:  getEnv("GCP_LOCATION", "us-central1"),

		DefaultModel:     getEnv("DEFAULT_GEMINI_MODEL", FallbackModel),
		DefaultPreprompt: getEnv("DEFAULT_PREPROMPT", ""),

		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		UpstreamTimeout: getDurationEnv("UPSTREAM_TIMEOUT", 60*time.Second),

		UseMockLLM: getBoolEnv("USE_MOCK_LLM", false),
	}

	if cfg.GCPProjectID != "" {
		cfg.Backend = BackendVertex
	} else {
		cfg.Backend = BackendGeminiAPI
	}

	if !IsValidModel(cfg.DefaultModel) {
		log.Printf("DEFAULT_GEMINI_MODEL=%q is not a known model, using %s", cfg.DefaultModel, FallbackModel)
		cfg.DefaultModel = FallbackModel
	}

	if cfg.UseMockLLM {
		return cfg
	}
	if cfg.Backend == BackendGeminiAPI && cfg.GoogleAPIKey == "" {
		log.Fatal("GOOGLE_API_KEY must be set (or GCP_PROJECT for the Vertex backend)")
	}

	return cfg
}
