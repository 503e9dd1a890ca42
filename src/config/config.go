package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	Environment string
	LogLevel    string

	PlaidClientID     string
	PlaidSecret       string
	PlaidTokenKey     []byte
	PlaidWebhookCheck bool
	SyncPageSize      int32

	AdminAPIToken      string
	CORSAllowedOrigins []string

	Tables Tables

	// TransactionsStartDate drops added/modified transactions dated before it. Zero means no floor.
	TransactionsStartDate time.Time

	NotificationsEnabled bool
	DigestChannel        string
	SlackWebhookURL      string
	RetryLimit           int

	SyncSchedule string
	Timezone     string
}

// Tables holds the physical table names used by every repository.
type Tables struct {
	Items             string
	Accounts          string
	BalanceSnapshots  string
	Transactions      string
	Cursors           string
	Runs              string
	Notifications     string
	PlaidWebhookEvent string
}

// MaxSyncPageSize is the largest count /transactions/sync accepts.
const MaxSyncPageSize = 500

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate rejects names that are not plain, optionally schema-qualified, identifiers.
// Repositories interpolate them into SQL.
func (t Tables) Validate() error {
	for env, name := range map[string]string{
		"PLAID_ITEMS_TABLE":          t.Items,
		"ACCOUNTS_TABLE":             t.Accounts,
		"BALANCE_SNAPSHOTS_TABLE":    t.BalanceSnapshots,
		"TRANSACTIONS_TABLE":         t.Transactions,
		"CURSORS_TABLE":              t.Cursors,
		"RUNS_TABLE":                 t.Runs,
		"NOTIFICATIONS_TABLE":        t.Notifications,
		"PLAID_WEBHOOK_EVENTS_TABLE": t.PlaidWebhookEvent,
	} {
		if !tableName.MatchString(name) {
			return fmt.Errorf("invalid %s %q", env, name)
		}
	}
	return nil
}

func DefaultTables() Tables {
	return Tables{
		Items:             "plaid_items",
		Accounts:          "accounts",
		BalanceSnapshots:  "balance_snapshots",
		Transactions:      "transactions",
		Cursors:           "cursors",
		Runs:              "runs",
		Notifications:     "notifications",
		PlaidWebhookEvent: "plaid_webhook_events",
	}
}

func Load() (Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	defaults := DefaultTables()
	env := getEnv("PLAID_ENV", getEnv("ENVIRONMENT", "sandbox"))

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Environment:   env,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   plaidSecret(env),
		AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),
		Tables: Tables{
			Items:             getEnv("PLAID_ITEMS_TABLE", defaults.Items),
			Accounts:          getEnv("ACCOUNTS_TABLE", defaults.Accounts),
			BalanceSnapshots:  getEnv("BALANCE_SNAPSHOTS_TABLE", defaults.BalanceSnapshots),
			Transactions:      getEnv("TRANSACTIONS_TABLE", defaults.Transactions),
			Cursors:           getEnv("CURSORS_TABLE", defaults.Cursors),
			Runs:              getEnv("RUNS_TABLE", defaults.Runs),
			Notifications:     getEnv("NOTIFICATIONS_TABLE", defaults.Notifications),
			PlaidWebhookEvent: getEnv("PLAID_WEBHOOK_EVENTS_TABLE", defaults.PlaidWebhookEvent),
		},
		DigestChannel:   getEnv("DIGEST_CHANNEL", "slack"),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		Timezone:        getEnv("TIMEZONE", "America/New_York"),
	}
	cfg.CORSAllowedOrigins = getList("CORS_ALLOWED_ORIGINS")

	var err error
	if err = cfg.Tables.Validate(); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.PlaidClientID == "" || cfg.PlaidSecret == "" {
		return cfg, errors.New("PLAID_CLIENT_ID and PLAID_SECRET are required")
	}
	if env != "sandbox" && env != "production" {
		return cfg, fmt.Errorf("invalid PLAID_ENV %q", env)
	}

	cfg.PlaidTokenKey, err = parseTokenKey(getEnv("PLAID_TOKEN_KEY", ""))
	if err != nil {
		return cfg, err
	}
	if cfg.PlaidWebhookCheck, err = getBool("PLAID_WEBHOOK_VERIFY", true); err != nil {
		return cfg, err
	}
	if cfg.NotificationsEnabled, err = getBool("NOTIFICATIONS_ENABLED", true); err != nil {
		return cfg, err
	}
	if cfg.RetryLimit, err = getInt("RETRY_LIMIT", 25); err != nil {
		return cfg, err
	}
	pageSize, err := getInt("PLAID_SYNC_PAGE_SIZE", MaxSyncPageSize)
	if err != nil {
		return cfg, err
	}
	if pageSize < 1 || pageSize > MaxSyncPageSize {
		return cfg, fmt.Errorf("PLAID_SYNC_PAGE_SIZE out of range: %d", pageSize)
	}
	cfg.SyncPageSize = int32(pageSize)

	hour, err := getInt("DAILY_DIGEST_HOUR", 9)
	if err != nil {
		return cfg, err
	}
	if hour < 0 || hour > 23 {
		return cfg, fmt.Errorf("DAILY_DIGEST_HOUR out of range: %d", hour)
	}
	cfg.SyncSchedule = getEnv("SYNC_SCHEDULE", fmt.Sprintf("0 0 %d * * *", hour))

	if raw := getEnv("TRANSACTIONS_START_DATE", ""); raw != "" {
		cfg.TransactionsStartDate, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid TRANSACTIONS_START_DATE: %w", err)
		}
	}

	return cfg, nil
}

func plaidSecret(env string) string {
	if v := getEnv("PLAID_SECRET", ""); v != "" {
		return v
	}
	if env == "production" {
		return getEnv("PLAID_PRODUCTION_SECRET", "")
	}
	return getEnv("PLAID_SANDBOX_SECRET", "")
}

func parseTokenKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, errors.New("PLAID_TOKEN_KEY is required")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("PLAID_TOKEN_KEY must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PLAID_TOKEN_KEY must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(value))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
