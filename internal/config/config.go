package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config carries all process configuration, loaded from environment variables.
type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Twitch credentials. Both are optional: without an access token the chat
	// connector falls back to anonymous login, and without a client id the
	// identity lookup (and with it the id-keyed emote source) is disabled.
	TwitchClientID    string
	TwitchAccessToken string
	BotNickname       string

	// Path of the emote sentiment catalog CSV.
	EmoteSentimentCSV string

	// Comma-separated list of allowed dashboard origins for CORS.
	AllowedOrigins []string

	// WebSocket connection limits.
	MaxConnections       int64
	MaxConnectionsPerIP  int
	ConnectionsPerSecond float64
	ConnectionBurst      int

	// Maximum keywords extracted per message.
	MaxKeywords int
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		TwitchClientID:    getEnv("TWITCH_CLIENT_ID", ""),
		TwitchAccessToken: getEnv("TWITCH_ACCESS_TOKEN", ""),
		BotNickname:       getEnv("BOT_NICKNAME", "justinfan123"),
		EmoteSentimentCSV: getEnv("EMOTE_SENTIMENT_CSV", "emote_sentiment_scores.csv"),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
	}

	var err error
	if cfg.MaxConnections, err = getEnvInt64("MAX_CONNECTIONS", 1000); err != nil {
		return nil, err
	}
	if cfg.MaxConnectionsPerIP, err = getEnvInt("MAX_CONNECTIONS_PER_IP", 20); err != nil {
		return nil, err
	}
	if cfg.ConnectionsPerSecond, err = getEnvFloat("CONNECTIONS_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if cfg.ConnectionBurst, err = getEnvInt("CONNECTION_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.MaxKeywords, err = getEnvInt("MAX_KEYWORDS", 5); err != nil {
		return nil, err
	}

	if cfg.MaxConnections <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS must be positive")
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive")
	}
	if cfg.MaxKeywords <= 0 {
		return nil, fmt.Errorf("MAX_KEYWORDS must be positive")
	}
	if cfg.TwitchAccessToken != "" && cfg.TwitchClientID == "" {
		return nil, fmt.Errorf("TWITCH_CLIENT_ID is required when TWITCH_ACCESS_TOKEN is set")
	}

	return cfg, nil
}

// AnonymousChat reports whether the chat connector should use anonymous login.
func (c *Config) AnonymousChat() bool {
	return c.TwitchAccessToken == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
