package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        string
	VerifyToken string

	// Database
	DBDriver   string // postgres or sqlite
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Meta Graph API
	GraphAPIBaseURL string
	GraphAPIVersion string
	GatewayTimeout  time.Duration

	HTTPCallTimeout        time.Duration
	ScheduleReloadInterval time.Duration

	LogLevel  string
	LogFormat string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded, using process environment")
	}

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		VerifyToken:            getEnv("VERIFY_TOKEN", ""),
		DBDriver:               getEnv("DB_DRIVER", "sqlite"),
		DBPath:                 getEnv("DB_PATH", "./socialflow.db"),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBUser:                 getEnv("DB_USER", "postgres"),
		DBPassword:             getEnv("DB_PASSWORD", ""),
		DBName:                 getEnv("DB_NAME", "socialflow"),
		DBSSLMode:              getEnv("DB_SSLMODE", "disable"),
		GraphAPIBaseURL:        getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com"),
		GraphAPIVersion:        getEnv("GRAPH_API_VERSION", "v18.0"),
		GatewayTimeout:         getDuration("GATEWAY_TIMEOUT", 15*time.Second),
		HTTPCallTimeout:        getDuration("HTTP_CALL_TIMEOUT", 10*time.Second),
		ScheduleReloadInterval: getDuration("SCHEDULE_RELOAD_INTERVAL", time.Minute),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "console"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getDuration accepts Go duration strings ("10s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
	return fallback
}
