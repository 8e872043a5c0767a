// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Booking source
	BookingBaseURL string

	// Calendar
	// Timezone はプロセス全体で共有する単一のIANAタイムゾーン名。
	// フェッチャーと関心条件の両方がこのゾーンで「18時」「土曜日」を解釈する。
	Timezone string

	// Fetch
	MonthsLookahead    int
	MaxFetchRetries    int
	FetchTimeout       time.Duration
	FetchMaxConcurrent int
	FetchRateLimit     float64 // 外部ソースへの秒間リクエスト数の上限

	// Recipients
	RecipientsFile string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Watch mode
	WatchInterval time.Duration
	ServerPort    string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BookingBaseURL = os.Getenv("BOOKING_BASE_URL")
	if cfg.BookingBaseURL == "" {
		missing = append(missing, "BOOKING_BASE_URL")
	}

	cfg.RecipientsFile = os.Getenv("RECIPIENTS_FILE")
	if cfg.RecipientsFile == "" {
		missing = append(missing, "RECIPIENTS_FILE")
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPHost == "" {
		missing = append(missing, "SMTP_HOST")
	}

	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPFrom == "" {
		missing = append(missing, "SMTP_FROM")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.Timezone = getEnvString("TIMEZONE", "Europe/London")
	cfg.MonthsLookahead = getEnvInt("MONTHS_LOOKAHEAD", 2)
	cfg.MaxFetchRetries = getEnvInt("MAX_FETCH_RETRIES", 2)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 4)
	cfg.FetchRateLimit = getEnvFloat("FETCH_RATE_LIMIT", 2)
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.SMTPFromName = getEnvString("SMTP_FROM_NAME", "slotwatch")
	cfg.WatchInterval = getEnvDuration("WATCH_INTERVAL", 30*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	if cfg.MonthsLookahead < 1 {
		return nil, fmt.Errorf("MONTHS_LOOKAHEAD は1以上を指定してください: %d", cfg.MonthsLookahead)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
