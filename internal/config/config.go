package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          string
	AllowedOrigin string
	DBPath        string

	RemoteBaseURL     string
	RemoteAuthSecret  string
	RemoteDatabaseURL string
	RemoteRedisAddr   string
	RemoteRedisPass   string
	RemoteRedisDB     int

	SyncIntervalSeconds int
	SyncMaxAttempts     int
	SyncBackoffMS       int
	SyncDeadLetterAfter int
	StartOnline         bool
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REMOTE_REDIS_DB", "0"))

	return Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DBPath:        getEnv("DB_PATH", "data/nexuserp.db"),

		RemoteBaseURL:     os.Getenv("REMOTE_BASE_URL"),
		RemoteAuthSecret:  strings.TrimSpace(os.Getenv("REMOTE_AUTH_SECRET")),
		RemoteDatabaseURL: os.Getenv("REMOTE_DATABASE_URL"),
		RemoteRedisAddr:   os.Getenv("REMOTE_REDIS_ADDR"),
		RemoteRedisPass:   os.Getenv("REMOTE_REDIS_PASSWORD"),
		RemoteRedisDB:     redisDB,

		SyncIntervalSeconds: getEnvInt("SYNC_INTERVAL_SECONDS", 30),
		SyncMaxAttempts:     getEnvInt("SYNC_MAX_ATTEMPTS", 3),
		SyncBackoffMS:       getEnvInt("SYNC_BACKOFF_MS", 250),
		SyncDeadLetterAfter: getEnvInt("SYNC_DEAD_LETTER_AFTER", 5),
		StartOnline:         getEnvBool("START_ONLINE", true),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return val
}
