package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort        string
	JWTKey         []byte
	RequestTimeout time.Duration
	LogMode        string
	CORSOrigins    []string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GoogleClientID string

	ActivityQueueName      string
	ActivityLockTTLSeconds int
	ContentCacheTTL        time.Duration
	LeaderboardKey         string
	// LeaderboardRebuild is the interval of the periodic projection rebuild; zero disables it.
	LeaderboardRebuild time.Duration
}

var AppConfig *Config

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Load reads .env (when present) and the environment into AppConfig.
// It fails when JWT_SECRET is absent; there is no fallback signing key.
func Load() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	secret := strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if secret == "" {
		return ErrMissingJWTSecret
	}

	cfg := &Config{
		APIPort:                getEnv("API_PORT", "8080"),
		JWTKey:                 []byte(secret),
		RequestTimeout:         time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		LogMode:                getEnv("LOG_MODE", "dev"),
		CORSOrigins:            splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBUser:                 getEnv("DB_USER", "user"),
		DBPassword:             getEnv("DB_PASSWORD", "password"),
		DBName:                 getEnv("DB_NAME", "algoforge"),
		DBSslMode:              getEnv("DB_SSLMODE", "disable"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvAsInt("REDIS_DB", 0),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		ActivityQueueName:      getEnv("ACTIVITY_QUEUE_NAME", "activity_events_queue"),
		ActivityLockTTLSeconds: getEnvAsInt("ACTIVITY_LOCK_TTL_SECONDS", 30),
		ContentCacheTTL:        time.Duration(getEnvAsInt("CONTENT_CACHE_TTL_SECONDS", 300)) * time.Second,
		LeaderboardKey:         getEnv("LEADERBOARD_KEY", "leaderboard:xp"),
		LeaderboardRebuild:     time.Duration(getEnvAsInt("LEADERBOARD_REBUILD_MINUTES", 15)) * time.Minute,
	}

	cfg.DBConnStr = getEnv("DATABASE_URL", "")
	if cfg.DBConnStr == "" {
		cfg.DBConnStr = "host=" + cfg.DBHost +
			" port=" + cfg.DBPort +
			" user=" + cfg.DBUser +
			" password=" + cfg.DBPassword +
			" dbname=" + cfg.DBName +
			" sslmode=" + cfg.DBSslMode
	}

	AppConfig = cfg
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
