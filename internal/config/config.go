package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv                  string
	Port                    string
	AllowedOrigin           string
	LogLevel                string
	LogEncoding             string
	MongoURI                string
	MongoDatabase           string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	AdvisoryCacheTTLSeconds int
	SessionSecret           string
	SessionTTLMinutes       int
	GeminiAPIKey            string
	GeminiModel             string
	StoreName               string
	CurrencyLocale          string
	CurrencySymbol          string
	OutboxBuffer            int
	SeedCatalog             bool
}

// Load reads a .env file when present and then the process environment.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	appEnv := getEnv("APP_ENV", "production")
	level, encoding := "info", "json"
	if appEnv == "development" {
		level, encoding = "debug", "console"
	}

	cfg := Config{
		AppEnv:                  appEnv,
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		LogLevel:                getEnv("LOG_LEVEL", level),
		LogEncoding:             getEnv("LOG_ENCODING", encoding),
		MongoURI:                strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:           getEnv("MONGO_DATABASE", "kasapos"),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvInt("REDIS_DB", 0, 0),
		AdvisoryCacheTTLSeconds: getEnvInt("ADVISORY_CACHE_TTL_SECONDS", 600, 1),
		SessionSecret:           strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTLMinutes:       getEnvInt("SESSION_TTL_MINUTES", 720, 1),
		GeminiAPIKey:            strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash-preview-09-2025"),
		StoreName:               getEnv("STORE_NAME", "Uzunoğlu Market"),
		CurrencyLocale:          getEnv("CURRENCY_LOCALE", "tr-TR"),
		CurrencySymbol:          getEnv("CURRENCY_SYMBOL", "₺"),
		OutboxBuffer:            getEnvInt("OUTBOX_BUFFER", 256, 1),
		SeedCatalog:             getEnvBool("SEED_CATALOG", false),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getEnvInt falls back when the value is missing, malformed or below min.
func getEnvInt(key string, fallback int, min int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < min {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return b
}
