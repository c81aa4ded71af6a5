package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string
	LogLevel    string

	// Redis configuration, an empty address disables snapshot publishing
	RedisAddress string
	RedisChannel string

	FrontendAddress string

	// Background publishing
	WorkerPoolSize int

	// Optional YAML file replayed into the editor at startup
	SeedFile string
}

// Global application configuration
var AppConfig Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	loadDotEnv()
	AppConfig = FromEnv()
}

// FromEnv builds a Config from the current environment without touching
// AppConfig.
func FromEnv() Config {
	return Config{
		ServerPort:      getEnv("PORT", "8080"),
		Environment:     getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "debug"),
		RedisAddress:    getEnv("REDIS_ADDRESS", ""),
		RedisChannel:    getEnv("REDIS_CHANNEL", "editor:snapshots"),
		FrontendAddress: getEnv("FRONTEND_ADDRESS", "http://localhost:3000"),
		WorkerPoolSize:  getEnvInt("WORKER_POOL_SIZE", 4),
		SeedFile:        getEnv("SEED_FILE", ""),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func loadDotEnv() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("error loading .env file")
		}
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}
