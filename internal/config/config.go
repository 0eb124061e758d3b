package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string // extra CIDRs allowed to set X-Forwarded-For

	// Database
	SQLiteDBPath string

	// Logging
	LogLevel string

	// AMQP; an empty URL disables event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Journal mirror
	JournalBackend           string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Language model; an empty URL leaves only the quick commands
	LLMAPIURL  string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Chat and queries
	RecentDefaultLimit int
	IntentCacheSize    int
	IntentCacheTTL     time.Duration
	ChatHistoryLimit   int
	ChatSessionTTL     time.Duration
	DisplayTimezone    string // IANA zone for shown timestamps; empty means local
}

// Journal backends.
const (
	JournalMemory = "memory"
	JournalSheets = "sheets"
)

var (
	validLogLevels       = []string{"debug", "info", "warn", "error"}
	validJournalBackends = []string{JournalMemory, JournalSheets}
)

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finance.db"),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finagent"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		JournalBackend:           getEnv("JOURNAL_BACKEND", JournalMemory),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Journal"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LLMAPIURL:  getEnv("LLM_API_URL", ""),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4.1-mini"),
		LLMTimeout: getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		RecentDefaultLimit: getEnvInt("RECENT_DEFAULT_LIMIT", 10),
		IntentCacheSize:    getEnvInt("INTENT_CACHE_SIZE", 256),
		IntentCacheTTL:     getEnvDuration("INTENT_CACHE_TTL", 10*time.Minute),
		ChatHistoryLimit:   getEnvInt("CHAT_HISTORY_LIMIT", 50),
		ChatSessionTTL:     getEnvDuration("CHAT_SESSION_TTL", 24*time.Hour),
		DisplayTimezone:    getEnv("DISPLAY_TIMEZONE", ""),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validJournalBackends, c.JournalBackend) {
		errors = append(errors, fmt.Sprintf("invalid journal backend '%s': must be one of %v", c.JournalBackend, validJournalBackends))
	}
	if c.JournalBackend == JournalSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets journal")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets journal")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.LLMAPIURL != "" {
		if parsedURL, err := url.Parse(c.LLMAPIURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid LLM API URL '%s': %v", c.LLMAPIURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid LLM API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.LLMModel == "" {
			errors = append(errors, "LLM model cannot be empty when LLM API URL is provided")
		}
	}
	if c.LLMTimeout < time.Second || c.LLMTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid LLM timeout %v: must be between 1s and 5m", c.LLMTimeout))
	}

	if c.RecentDefaultLimit < 1 || c.RecentDefaultLimit > 1000 {
		errors = append(errors, fmt.Sprintf("invalid recent default limit %d: must be between 1 and 1000", c.RecentDefaultLimit))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.IntentCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid intent cache size %d: must be at least 1", c.IntentCacheSize))
	}
	if c.IntentCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid intent cache TTL %v: must not be negative", c.IntentCacheTTL))
	}
	if c.ChatHistoryLimit < 2 {
		errors = append(errors, fmt.Sprintf("invalid chat history limit %d: must be at least 2", c.ChatHistoryLimit))
	}
	if c.ChatSessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid chat session TTL %v: must be at least 1 minute", c.ChatSessionTTL))
	}
	if c.DisplayTimezone != "" {
		if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
			errors = append(errors, fmt.Sprintf("invalid display timezone '%s': %v", c.DisplayTimezone, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// LLMEnabled reports whether a language model endpoint is configured.
func (c *Config) LLMEnabled() bool { return c.LLMAPIURL != "" }

// DisplayLocation is the zone replies show timestamps in. An unset or
// unknown zone yields time.Local.
func (c *Config) DisplayLocation() *time.Location {
	if c.DisplayTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// EventsEnabled reports whether an AMQP broker is configured.
func (c *Config) EventsEnabled() bool { return c.AMQPURL != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
