package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/strawbean/plugin/timeexpr"
	"github.com/hrygo/strawbean/server/timezone"
)

// Engine defaults.
const (
	DefaultPrefix             = "%"
	DefaultLocale             = "en-AU"
	DefaultTimezone           = timezone.TimezoneAustraliaSydney
	DefaultTickInterval       = time.Second
	DefaultNotifyTimeout      = 10 * time.Second
	DefaultNotifyConcurrency  = 8
	DefaultReminderName       = "reminder"
	DefaultRateLimitPerSecond = 10
	DefaultRateLimitBurst     = 20
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where strawbean stores its reminders
	DSN string
	// Driver is the database driver (sqlite, postgres or memory)
	Driver string
	// Version is the current version of server
	Version string

	// Engine configuration
	Prefix              string        // STRAWBEAN_PREFIX (default: %)
	Locale              string        // STRAWBEAN_LOCALE (default: en-AU)
	Timezone            string        // STRAWBEAN_TIMEZONE (default: Australia/Sydney)
	TickInterval        time.Duration // STRAWBEAN_TICK_INTERVAL (default: 1s)
	NotifyTimeout       time.Duration // STRAWBEAN_NOTIFY_TIMEOUT (default: 10s)
	NotifyConcurrency   int           // STRAWBEAN_NOTIFY_CONCURRENCY (default: 8)
	DefaultReminderName string        // STRAWBEAN_DEFAULT_REMINDER_NAME (default: reminder)

	// Delivery and access
	WebhookURL    string // STRAWBEAN_WEBHOOK_URL
	WebhookSecret string // STRAWBEAN_WEBHOOK_SECRET
	Secret        string // STRAWBEAN_SECRET, signs access tokens

	RateLimitPerSecond int // STRAWBEAN_RATE_LIMIT (default: 10)
	RateLimitBurst     int // STRAWBEAN_RATE_LIMIT_BURST (default: 20)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Location returns the configured timezone, falling back to UTC.
func (p *Profile) Location() *time.Location {
	loc, err := timezone.ParseTimezone(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParsedLocale returns the configured locale, falling back to the default.
func (p *Profile) ParsedLocale() timeexpr.Locale {
	locale, err := timeexpr.ParseLocale(p.Locale)
	if err != nil {
		return timeexpr.DefaultLocale
	}
	return locale
}

// FromEnv loads engine configuration from STRAWBEAN_* environment variables.
// Malformed numeric values fall back to their defaults.
func (p *Profile) FromEnv() {
	getEnvWithDefault := func(key, defaultValue string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultValue
	}

	getDurationEnv := func(key string, defaultValue time.Duration) time.Duration {
		val := os.Getenv(key)
		if val == "" {
			return defaultValue
		}
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			slog.Warn("ignoring invalid duration", slog.String("key", key), slog.String("value", val))
			return defaultValue
		}
		return d
	}

	getIntEnv := func(key string, defaultValue int) int {
		val := os.Getenv(key)
		if val == "" {
			return defaultValue
		}
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			slog.Warn("ignoring invalid integer", slog.String("key", key), slog.String("value", val))
			return defaultValue
		}
		return n
	}

	p.Prefix = getEnvWithDefault("STRAWBEAN_PREFIX", DefaultPrefix)
	p.Locale = getEnvWithDefault("STRAWBEAN_LOCALE", DefaultLocale)
	p.Timezone = getEnvWithDefault("STRAWBEAN_TIMEZONE", DefaultTimezone)
	p.TickInterval = getDurationEnv("STRAWBEAN_TICK_INTERVAL", DefaultTickInterval)
	p.NotifyTimeout = getDurationEnv("STRAWBEAN_NOTIFY_TIMEOUT", DefaultNotifyTimeout)
	p.NotifyConcurrency = getIntEnv("STRAWBEAN_NOTIFY_CONCURRENCY", DefaultNotifyConcurrency)
	p.DefaultReminderName = getEnvWithDefault("STRAWBEAN_DEFAULT_REMINDER_NAME", DefaultReminderName)
	p.WebhookURL = os.Getenv("STRAWBEAN_WEBHOOK_URL")
	p.WebhookSecret = os.Getenv("STRAWBEAN_WEBHOOK_SECRET")
	p.Secret = os.Getenv("STRAWBEAN_SECRET")
	p.RateLimitPerSecond = getIntEnv("STRAWBEAN_RATE_LIMIT", DefaultRateLimitPerSecond)
	p.RateLimitBurst = getIntEnv("STRAWBEAN_RATE_LIMIT_BURST", DefaultRateLimitBurst)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// applyDefaults fills zero-valued engine settings.
func (p *Profile) applyDefaults() {
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Prefix == "" {
		p.Prefix = DefaultPrefix
	}
	if p.Locale == "" {
		p.Locale = DefaultLocale
	}
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.TickInterval <= 0 {
		p.TickInterval = DefaultTickInterval
	}
	if p.NotifyTimeout <= 0 {
		p.NotifyTimeout = DefaultNotifyTimeout
	}
	if p.NotifyConcurrency <= 0 {
		p.NotifyConcurrency = DefaultNotifyConcurrency
	}
	if p.DefaultReminderName == "" {
		p.DefaultReminderName = DefaultReminderName
	}
	if p.RateLimitPerSecond <= 0 {
		p.RateLimitPerSecond = DefaultRateLimitPerSecond
	}
	if p.RateLimitBurst <= 0 {
		p.RateLimitBurst = DefaultRateLimitBurst
	}
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	p.applyDefaults()

	if !timezone.IsValidTimezone(p.Timezone) {
		return errors.Errorf("invalid timezone %q", p.Timezone)
	}
	if _, err := timeexpr.ParseLocale(p.Locale); err != nil {
		return errors.Wrapf(err, "invalid locale %q", p.Locale)
	}

	switch p.Driver {
	case "memory":
		return nil
	case "postgres":
		if p.DSN == "" {
			return errors.New("postgres driver requires a DSN")
		}
		return nil
	case "sqlite":
	default:
		return errors.Errorf("unknown driver %q", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "strawbean")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/strawbean"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		dbFile := fmt.Sprintf("strawbean_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
