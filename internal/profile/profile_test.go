package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var engineEnvVars = []string{
	"STRAWBEAN_PREFIX",
	"STRAWBEAN_LOCALE",
	"STRAWBEAN_TIMEZONE",
	"STRAWBEAN_TICK_INTERVAL",
	"STRAWBEAN_NOTIFY_TIMEOUT",
	"STRAWBEAN_NOTIFY_CONCURRENCY",
	"STRAWBEAN_DEFAULT_REMINDER_NAME",
	"STRAWBEAN_WEBHOOK_URL",
	"STRAWBEAN_WEBHOOK_SECRET",
	"STRAWBEAN_SECRET",
	"STRAWBEAN_RATE_LIMIT",
	"STRAWBEAN_RATE_LIMIT_BURST",
}

func clearEngineEnv(t *testing.T) {
	t.Helper()
	for _, key := range engineEnvVars {
		t.Setenv(key, "")
	}
}

func TestProfileFromEnvDefaults(t *testing.T) {
	clearEngineEnv(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "%", p.Prefix)
	assert.Equal(t, "en-AU", p.Locale)
	assert.Equal(t, "Australia/Sydney", p.Timezone)
	assert.Equal(t, time.Second, p.TickInterval)
	assert.Equal(t, 10*time.Second, p.NotifyTimeout)
	assert.Equal(t, 8, p.NotifyConcurrency)
	assert.Equal(t, "reminder", p.DefaultReminderName)
	assert.Empty(t, p.WebhookURL)
	assert.Empty(t, p.Secret)
}

func TestProfileFromEnv(t *testing.T) {
	clearEngineEnv(t)

	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) any
		expected any
	}{
		{"prefix", "STRAWBEAN_PREFIX", "!", func(p *Profile) any { return p.Prefix }, "!"},
		{"locale", "STRAWBEAN_LOCALE", "en-US", func(p *Profile) any { return p.Locale }, "en-US"},
		{"timezone", "STRAWBEAN_TIMEZONE", "Europe/London", func(p *Profile) any { return p.Timezone }, "Europe/London"},
		{"tick interval", "STRAWBEAN_TICK_INTERVAL", "250ms", func(p *Profile) any { return p.TickInterval }, 250 * time.Millisecond},
		{"bad tick interval", "STRAWBEAN_TICK_INTERVAL", "soon", func(p *Profile) any { return p.TickInterval }, time.Second},
		{"notify timeout", "STRAWBEAN_NOTIFY_TIMEOUT", "3s", func(p *Profile) any { return p.NotifyTimeout }, 3 * time.Second},
		{"concurrency", "STRAWBEAN_NOTIFY_CONCURRENCY", "2", func(p *Profile) any { return p.NotifyConcurrency }, 2},
		{"bad concurrency", "STRAWBEAN_NOTIFY_CONCURRENCY", "-1", func(p *Profile) any { return p.NotifyConcurrency }, 8},
		{"webhook", "STRAWBEAN_WEBHOOK_URL", "http://hook", func(p *Profile) any { return p.WebhookURL }, "http://hook"},
		{"secret", "STRAWBEAN_SECRET", "s3cret", func(p *Profile) any { return p.Secret }, "s3cret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.envValue)
			p := &Profile{}
			p.FromEnv()
			assert.Equal(t, tt.expected, tt.field(p))
		})
	}
}

func TestProfileValidate(t *testing.T) {
	t.Run("sqlite fills dsn", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		require.NoError(t, p.Validate())
		assert.Equal(t, filepath.Join(dir, "strawbean_dev.db"), p.DSN)
		assert.Equal(t, DefaultTickInterval, p.TickInterval)
	})

	t.Run("unknown mode becomes demo", func(t *testing.T) {
		p := &Profile{Mode: "weird", Driver: "memory"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
		assert.True(t, p.IsDev())
	})

	t.Run("postgres needs dsn", func(t *testing.T) {
		p := &Profile{Mode: "prod", Driver: "postgres"}
		assert.Error(t, p.Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql"}
		assert.Error(t, p.Validate())
	})

	t.Run("invalid timezone", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "memory", Timezone: "Mars/Olympus"}
		assert.Error(t, p.Validate())
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: filepath.Join(t.TempDir(), "missing")}
		assert.Error(t, p.Validate())
	})
}

func TestProfileLocation(t *testing.T) {
	p := &Profile{Timezone: "America/New_York"}
	assert.Equal(t, "America/New_York", p.Location().String())

	p.Timezone = "nope"
	assert.Equal(t, time.UTC, p.Location())

	p.Locale = "en-US"
	assert.True(t, p.ParsedLocale().MonthFirst)
}
