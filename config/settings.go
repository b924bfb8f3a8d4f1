package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Settings gathers every environment knob the server reads after godotenv.Load.
type Settings struct {
	Prod     bool
	Port     string
	UseHTTPS bool
	LogLevel string

	RedisURL string
	NatsURL  string

	// Cookie session key
	SessionKey string

	JWTSecret string
	TokenTTL  time.Duration

	PresenceInterval time.Duration
	PresenceTimeout  time.Duration
	HostTickInterval time.Duration

	// One of "redis", "nats", "local" or "polling"
	Distribution string
	PollInterval time.Duration

	// "postgres" or "sqlite"
	DBDriver   string
	SQLitePath string

	MigratePostgres bool
	SeedContent     bool
}

func LoadSettings() *Settings {
	s := &Settings{
		Prod:             os.Getenv("PROD") == "true",
		Port:             os.Getenv("PORT"),
		UseHTTPS:         os.Getenv("USE_HTTPS") == "true",
		LogLevel:         os.Getenv("LOG_LEVEL"),
		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		NatsURL:          getEnv("NATS_URL", "nats://localhost:4222"),
		SessionKey:       getEnv("KEY", "mobius-dev-session-key"),
		JWTSecret:        getEnv("JWT_SECRET", "mobius-dev-jwt-secret"),
		TokenTTL:         getDuration("TOKEN_TTL", 30*24*time.Hour),
		PresenceInterval: getDuration("PRESENCE_INTERVAL", 2*time.Second),
		PresenceTimeout:  getDuration("PRESENCE_TIMEOUT", 6*time.Second),
		HostTickInterval: getDuration("HOST_TICK_INTERVAL", time.Second),
		Distribution:     getEnv("DISTRIBUTION", "redis"),
		PollInterval:     getDuration("POLL_INTERVAL", 2*time.Second),
		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		SQLitePath:       getEnv("SQLITE_PATH", "mobius.db"),
		MigratePostgres:  os.Getenv("MIGRATE_POSTGRES") == "true",
		SeedContent:      os.Getenv("SEED_CONTENT") == "true",
	}

	if s.Port == "" {
		if s.UseHTTPS {
			s.Port = "443"
		} else {
			s.Port = "8080"
		}
	}
	if s.PresenceTimeout <= s.PresenceInterval {
		log.Warn().Msgf("[CONFIG] PRESENCE_TIMEOUT %s must exceed PRESENCE_INTERVAL %s, using 3x interval",
			s.PresenceTimeout, s.PresenceInterval)
		s.PresenceTimeout = 3 * s.PresenceInterval
	}
	return s
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Accepts Go durations ("2s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Msgf("[CONFIG] Invalid duration for %s: %q, using %s", key, raw, fallback)
	return fallback
}
