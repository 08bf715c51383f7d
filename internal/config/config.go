package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL       string
	DataFile          string
	LowStockThreshold int
	ExpiryWarningDays int
	AuthSecret        string
	SessionTTLMinutes int
}

func Load() Config {
	threshold, err := strconv.Atoi(getEnv("LOW_STOCK_THRESHOLD", "5"))
	if err != nil || threshold < 1 {
		threshold = 5
	}
	expiryDays, err := strconv.Atoi(getEnv("EXPIRY_WARNING_DAYS", "30"))
	if err != nil || expiryDays < 1 {
		expiryDays = 30
	}
	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "480"))
	if err != nil || sessionTTL < 1 {
		sessionTTL = 480
	}

	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DataFile:          os.Getenv("DATA_FILE"),
		LowStockThreshold: threshold,
		ExpiryWarningDays: expiryDays,
		AuthSecret:        strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		SessionTTLMinutes: sessionTTL,
	}

	return cfg
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
