package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN             string
	Environment       string
	HTTPAddr          string
	JWTSecret         string
	MigrationsPath    string
	TelegramToken     string
	TelegramOpsChatID int64
}

func Load() (*Config, error) {
	// Load .env if present; plain environment variables otherwise.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		Environment:    os.Getenv("ENV"),
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}

	if chat := os.Getenv("TELEGRAM_OPS_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_OPS_CHAT_ID must be an integer: %w", err)
		}
		cfg.TelegramOpsChatID = id
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	return cfg, nil
}

// TelegramEnabled reports whether outcome notifications go to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramOpsChatID != 0
}
