package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/nbd-kiosk/internal/store"
)

type Config struct {
	FunnelURL             string `yaml:"funnel_url"`
	RosterURL             string `yaml:"roster_url"`
	PushURL               string `yaml:"push_url"`
	Port                  string `yaml:"port"`
	HTTPTimeoutSeconds    int    `yaml:"http_timeout_seconds"`
	LogLevelName          string `yaml:"log_level"`
	FunnelPollSeconds     int    `yaml:"funnel_poll_seconds"`
	RotationSeconds       int    `yaml:"rotation_seconds"`
	CountdownTickMs       int    `yaml:"countdown_tick_ms"`
	RosterRefreshSchedule string `yaml:"roster_refresh_schedule"`
	Timezone              string `yaml:"timezone"`
	FunnelOrderingName    string `yaml:"funnel_ordering"`
	PushReconnectAttempts int    `yaml:"push_reconnect_attempts"`
	PushReconnectBaseMs   int    `yaml:"push_reconnect_base_ms"`

	// derivados, no vienen del YAML
	HTTPTimeout      time.Duration  `yaml:"-"`
	LogLevel         slog.Level     `yaml:"-"`
	FunnelPoll       time.Duration  `yaml:"-"`
	RotationInterval time.Duration  `yaml:"-"`
	CountdownTick    time.Duration  `yaml:"-"`
	PushBackoffBase  time.Duration  `yaml:"-"`
	Location         *time.Location `yaml:"-"`
	FunnelOrdering   store.Policy   `yaml:"-"`
}

// Load reads the optional YAML file (CONFIG_PATH, default config.yaml),
// applies env overrides and fills defaults.
func Load() (Config, error) {
	var cfg Config

	path := envOr("CONFIG_PATH", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	envOverride(&cfg.FunnelURL, "FUNNEL_API_URL")
	envOverride(&cfg.RosterURL, "ROSTER_API_URL")
	envOverride(&cfg.PushURL, "PUSH_WS_URL")
	envOverride(&cfg.Port, "PORT")
	envOverrideInt(&cfg.HTTPTimeoutSeconds, "HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.LogLevelName, "LOG_LEVEL")
	envOverrideInt(&cfg.FunnelPollSeconds, "FUNNEL_POLL_SECONDS")
	envOverrideInt(&cfg.RotationSeconds, "ROTATION_SECONDS")
	envOverrideInt(&cfg.CountdownTickMs, "COUNTDOWN_TICK_MS")
	envOverride(&cfg.RosterRefreshSchedule, "ROSTER_REFRESH_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.FunnelOrderingName, "FUNNEL_ORDERING")
	envOverrideInt(&cfg.PushReconnectAttempts, "PUSH_RECONNECT_ATTEMPTS")
	envOverrideInt(&cfg.PushReconnectBaseMs, "PUSH_RECONNECT_BASE_MS")

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	cfg.HTTPTimeout = seconds(cfg.HTTPTimeoutSeconds, 15)
	cfg.FunnelPoll = seconds(cfg.FunnelPollSeconds, 300)
	cfg.RotationInterval = seconds(cfg.RotationSeconds, 30)
	cfg.CountdownTick = millis(cfg.CountdownTickMs, 1000)
	cfg.PushBackoffBase = millis(cfg.PushReconnectBaseMs, 1000)
	if cfg.PushReconnectAttempts < 0 {
		cfg.PushReconnectAttempts = 0
	}

	cfg.LogLevel = slog.LevelInfo
	switch strings.ToLower(cfg.LogLevelName) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	}

	cfg.Location = time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("timezone %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	p, err := store.ParsePolicy(cfg.FunnelOrderingName)
	if err != nil {
		return cfg, err
	}
	cfg.FunnelOrdering = p
	return cfg, nil
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func millis(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envOverride(dst *string, k string) {
	if v := os.Getenv(k); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, k string) {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
