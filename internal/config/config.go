package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	// Key-rate feed used to derive the penalty rate; empty disables the feed
	// and PenaltyRate is used as-is.
	KeyRateURL string
	// PenaltyMargin is added to the key rate, in percentage points.
	PenaltyMargin float64
	// PenaltyRate is the fallback annual penalty rate (fraction, e.g. 0.15).
	PenaltyRate float64
	// PenaltyGraceDays delays penalty assessment after the due date.
	PenaltyGraceDays int
	// SweepSchedule is the cron expression for the overdue sweep.
	SweepSchedule string

	// Rebate expressions per interest type, evaluated with the variables
	// unearned_interest, principal_remaining and interest_accrued.
	RebateExprFlat      string
	RebateExprDeclining string

	SMTPHost    string
	SMTPPort    string
	SMTPUser    string
	SMTPPass    string
	SenderEmail string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DBConn:              getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=contracts sslmode=disable"),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		KeyRateURL:          getEnv("KEYRATE_URL", ""),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", "0 2 * * *"),
		RebateExprFlat:      getEnv("REBATE_EXPR_FLAT", "0"),
		RebateExprDeclining: getEnv("REBATE_EXPR_DECLINING", "unearned_interest"),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnv("SMTP_PORT", "587"),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPass:            getEnv("SMTP_PASS", ""),
		SenderEmail:         getEnv("SENDER_EMAIL", "noreply@example.com"),
	}

	var err error
	if cfg.PenaltyMargin, err = getEnvFloat("PENALTY_MARGIN", 2.0); err != nil {
		return nil, err
	}
	if cfg.PenaltyRate, err = getEnvFloat("PENALTY_RATE", 0.15); err != nil {
		return nil, err
	}
	if cfg.PenaltyGraceDays, err = getEnvInt("PENALTY_GRACE_DAYS", 0); err != nil {
		return nil, err
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvInt(key string, defaultVal int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
