package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port          int
	NatsURL       string
	NatsToken     string
	DatabaseURL   string
	LogLevel      string
	SlackBotToken string
	NoticeChannel string
	APIToken      string
	Timezone      string
}

func Load() Config {
	return Config{
		Port:          envInt("DAIKO_PORT", 8760),
		NatsURL:       envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:     envStr("NATS_TOKEN", ""),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		NoticeChannel: envStr("NOTICE_CHANNEL", ""),
		APIToken:      envStr("DAIKO_API_TOKEN", ""),
		Timezone:      envStr("DAIKO_TZ", "Asia/Tokyo"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
