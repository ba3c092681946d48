package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings the core engine recognizes (spec §6).
// Load from env; call LoadEnvFile(".env") before Load() to use a .env file.
type Config struct {
	// DataRoot is the path to the store file and key material.
	DataRoot string

	// SeedFile optionally bootstraps instances/targets/recipients on first
	// run, when the store has no instances yet. See Seed in seed.go.
	SeedFile string
	// SeedForce re-applies SeedFile even if the store already has instances.
	SeedForce bool
	// SeedTimeout bounds how long the one-shot seed write may take.
	SeedTimeout time.Duration

	// Global alerting defaults (spec §4.7). The store's instances table
	// carries no per-instance override columns, so every instance is
	// evaluated against these same process-wide values.
	DownAfterSeconds           int
	RecoveredAfterSeconds      int
	RepeatEverySecondsUnder24h int
	RepeatEverySeconds24hTo72h int
	DailyAfterHours            int
	DailyHourLocal             int
	DailyMinuteLocal           int

	SchedulerTickSeconds int
	PublicBaseURL        string

	// ListenAddr serves /metrics and /healthz.
	ListenAddr string
}

// Load reads Config from the environment, applying the defaults from spec §4.7.
func Load() *Config {
	c := &Config{
		DataRoot:                   getEnv("WSMON_DATA_ROOT", "./data"),
		SeedFile:                   os.Getenv("WSMON_SEED_FILE"),
		SeedForce:                  getEnvBool("WSMON_SEED_FORCE", false),
		SeedTimeout:                getEnvDuration("WSMON_SEED_TIMEOUT", 10*time.Second),
		DownAfterSeconds:           getEnvInt("WSMON_DOWN_AFTER_SECONDS", 180),
		RecoveredAfterSeconds:      getEnvInt("WSMON_RECOVERED_AFTER_SECONDS", 60),
		RepeatEverySecondsUnder24h: getEnvInt("WSMON_REPEAT_EVERY_SECONDS_UNDER24H", 1800),
		RepeatEverySeconds24hTo72h: getEnvInt("WSMON_REPEAT_EVERY_SECONDS_24H_TO_72H", 3600),
		DailyAfterHours:            getEnvInt("WSMON_DAILY_AFTER_HOURS", 72),
		DailyHourLocal:             getEnvInt("WSMON_DAILY_HOUR_LOCAL", 10),
		DailyMinuteLocal:           getEnvInt("WSMON_DAILY_MINUTE_LOCAL", 0),
		SchedulerTickSeconds:       getEnvInt("WSMON_SCHEDULER_TICK_SECONDS", 15),
		PublicBaseURL:              os.Getenv("WSMON_PUBLIC_BASE_URL"),
		ListenAddr:                 getEnv("WSMON_LISTEN_ADDR", ":9090"),
	}
	if c.DownAfterSeconds <= 0 {
		c.DownAfterSeconds = 180
	}
	if c.RecoveredAfterSeconds <= 0 {
		c.RecoveredAfterSeconds = 60
	}
	if c.SchedulerTickSeconds <= 0 {
		c.SchedulerTickSeconds = 15
	}
	return c
}

// AlertTick returns SchedulerTickSeconds as a time.Duration.
func (c *Config) AlertTick() time.Duration {
	return time.Duration(c.SchedulerTickSeconds) * time.Second
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
