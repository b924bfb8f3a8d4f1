package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("USE_HTTPS", "")
	t.Setenv("PRESENCE_INTERVAL", "")
	t.Setenv("PRESENCE_TIMEOUT", "")
	t.Setenv("DISTRIBUTION", "")

	s := LoadSettings()

	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, 2*time.Second, s.PresenceInterval)
	assert.Equal(t, 6*time.Second, s.PresenceTimeout)
	assert.Equal(t, "redis", s.Distribution)
}

func TestLoadSettingsHTTPSPort(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("USE_HTTPS", "true")

	assert.Equal(t, "443", LoadSettings().Port)
}

func TestLoadSettingsDurations(t *testing.T) {
	t.Setenv("PRESENCE_INTERVAL", "3")
	t.Setenv("PRESENCE_TIMEOUT", "2s")
	t.Setenv("HOST_TICK_INTERVAL", "500ms")
	t.Setenv("POLL_INTERVAL", "not-a-duration")

	s := LoadSettings()

	assert.Equal(t, 3*time.Second, s.PresenceInterval)
	// timeout not above interval gets bumped
	assert.Equal(t, 9*time.Second, s.PresenceTimeout)
	assert.Equal(t, 500*time.Millisecond, s.HostTickInterval)
	assert.Equal(t, 2*time.Second, s.PollInterval)
}

func TestLoadSettingsDatabase(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "")

	s := LoadSettings()

	assert.Equal(t, "sqlite", s.DBDriver)
	assert.Equal(t, "mobius.db", s.SQLitePath)
}
