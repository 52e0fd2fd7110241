package config

import (
	"os"
	"strconv"
	"time"
)

type BotConfig struct {
	Token          string
	PollTimeout    int
	PendingTTL     time.Duration
	FuzzyThreshold int
	HistoryLimit   int
	DeadlineLimit  int
}

func LoadBotConfig() *BotConfig {
	return &BotConfig{
		Token:          getEnv("TELEGRAM_BOT_TOKEN", ""),
		PollTimeout:    getEnvAsInt("TELEGRAM_POLL_TIMEOUT", 60),
		PendingTTL:     getEnvAsDuration("BOT_PENDING_TTL", 10*time.Minute),
		FuzzyThreshold: getEnvAsInt("BOT_FUZZY_THRESHOLD", 60),
		HistoryLimit:   getEnvAsInt("BOT_HISTORY_LIMIT", 10),
		DeadlineLimit:  getEnvAsInt("BOT_DEADLINE_LIMIT", 20),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
