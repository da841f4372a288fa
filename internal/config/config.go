// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// MongoDB settings. An empty URI selects the in-memory store.
	MongoURI    string
	MongoDBName string

	// Agent LLM settings (Groq-hosted, OpenAI-compatible API)
	GroqAPIKey  string
	GroqBaseURL string
	AgentModel  string

	// Agent behavior
	AgentTimeout time.Duration

	// Title LLM settings
	TitleProvider string
	TitleModel    string
	TitleTimeout  time.Duration

	// Fallback LLM API keys
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Tool API keys. Tools are registered only when the key is present.
	TavilyAPIKey string
	TMDBAPIKey   string

	// NATS settings. An empty URL disables the event relay.
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings. An empty secret disables authentication.
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 180*time.Second),

		// MongoDB
		MongoURI:    getEnv("MONGODB_URI", ""),
		MongoDBName: getEnv("MONGODB_DB", "conversations"),

		// Agent LLM
		GroqAPIKey:  getEnv("GROQ_API_KEY", ""),
		GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		AgentModel:  getEnv("AGENT_MODEL", "llama-3.3-70b-versatile"),

		// Agent behavior
		AgentTimeout: getDurationEnv("AGENT_TIMEOUT", 120*time.Second),

		// Title LLM
		TitleProvider: getEnv("TITLE_LLM_PROVIDER", "openai"),
		TitleModel:    getEnv("TITLE_MODEL", ""),
		TitleTimeout:  getDurationEnv("TITLE_TIMEOUT", 10*time.Second),

		// Fallback LLM keys
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		// Tools
		TavilyAPIKey: getEnv("TAVILY_API_KEY", ""),
		TMDBAPIKey:   getEnv("TMDB_API_KEY", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
