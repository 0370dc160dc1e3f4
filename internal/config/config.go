package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	HTTPPort      string

	JWTSecret        string
	OperatorUsername string
	OperatorPassword string

	CacheTTL       time.Duration
	RunConcurrency int

	LogLevel string
	LogJSON  bool

	AI *AIConfig
}

// Load reads the configuration from the environment, after loading a .env
// file when one exists
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		MongoURI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "agentsurvey"),
		RedisAddr:     strings.TrimPrefix(getEnvOrDefault("REDIS_URI", "localhost:6379"), "redis://"),
		HTTPPort:      getEnvOrDefault("PORT", "8080"),

		JWTSecret:        getEnvOrDefault("JWT_SECRET", "dev-secret-change-me"),
		OperatorUsername: getEnvOrDefault("OPERATOR_USERNAME", "admin"),
		OperatorPassword: getEnvOrDefault("OPERATOR_PASSWORD", "admin"),

		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_HOURS", 24*7)) * time.Hour,
		RunConcurrency: getEnvInt("RUN_CONCURRENCY", 4),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", true),

		AI: DefaultAIConfig(),
	}
}
