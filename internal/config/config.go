package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	AppEnv          string
	Debug           bool
	Version         string
	BotToken        string
	ChannelID       int64
	AdminChatID     int64
	AdminKey        string
	BaseURL         string
	DataDir         string
	Port            string
	SentryDSN       string
	DefaultLanguage string
	SweepInterval   time.Duration
	ResyncPageSize  int
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	channelID, err := parseID("CHANNEL_ID")
	if err != nil {
		return nil, err
	}
	adminChatID, err := parseID("ADMIN_CHAT_ID")
	if err != nil {
		return nil, err
	}

	sweepInterval, err := time.ParseDuration(getEnv("SWEEP_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	resyncPageSize, err := strconv.Atoi(getEnv("RESYNC_PAGE_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid RESYNC_PAGE_SIZE: %w", err)
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           debug,
		Version:         getEnv("VERSION", "dev"),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelID:       channelID,
		AdminChatID:     adminChatID,
		AdminKey:        getEnv("ADMIN_KEY", ""),
		BaseURL:         getEnv("BASE_URL", ""),
		DataDir:         getEnv("DATA_DIR", "data"),
		Port:            getEnv("PORT", "8080"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),
		SweepInterval:   sweepInterval,
		ResyncPageSize:  resyncPageSize,
	}

	// Basic validation for essential variables
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.ChannelID == 0 {
		return nil, fmt.Errorf("CHANNEL_ID is required")
	}
	if cfg.AdminChatID == 0 {
		return nil, fmt.Errorf("ADMIN_CHAT_ID is required")
	}
	if cfg.AdminKey == "" {
		return nil, fmt.Errorf("ADMIN_KEY is required")
	}
	if cfg.BaseURL == "" {
		log.Println("Warning: BASE_URL is not set. Webhook self-registration disabled.")
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}

	return cfg, nil
}

func parseID(key string) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
