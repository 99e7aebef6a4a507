package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DBUrl             string
	JWTSecret         string
	AppEnv            string
	RedisURL          string
	AblyKey           string
	LLMAPIURL         string
	LLMAPIKey         string
	LLMModel          string
	BackendTimeout    time.Duration
	RealtimeDebounce  time.Duration
	ReplicationDelay  time.Duration
	EnableRedisBridge bool
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	timeout, err := getEnvDuration("BACKEND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	debounce, err := getEnvDuration("REALTIME_DEBOUNCE", 250*time.Millisecond)
	if err != nil {
		return nil, err
	}
	replicationDelay, err := getEnvDuration("REPLICATION_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DBUrl:             getEnv("DB_URL", ""),
		JWTSecret:         jwtSecret,
		AppEnv:            normalizeEnv(getEnv("APP_ENV", "production")),
		RedisURL:          getEnv("REDIS_URL", ""),
		AblyKey:           getEnv("ABLY_KEY", ""),
		LLMAPIURL:         getEnv("LLM_API_URL", ""),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", ""),
		BackendTimeout:    timeout,
		RealtimeDebounce:  debounce,
		ReplicationDelay:  replicationDelay,
		EnableRedisBridge: getEnvBool("REALTIME_REDIS_BRIDGE", true),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return parsed, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) RedisEnabled() bool {
	return c != nil && c.RedisURL != "" && c.EnableRedisBridge
}

func (c *Config) ChatbotLLMEnabled() bool {
	return c != nil && c.LLMAPIURL != ""
}
