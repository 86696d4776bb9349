package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/clock"
)

type AppConfig struct {
	ListenAddr string

	TimeControl        clock.TimeControl
	ClockTick          time.Duration
	MaxConcurrentGames int

	WSPingInterval time.Duration
	AllowedOrigins []string

	RedisURL         string
	DatabaseURL      string
	ResultWebhookURL string
	MessagesDir      string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:         ":3000",
		TimeControl:        clock.Blitz5,
		ClockTick:          clock.DefaultTick,
		MaxConcurrentGames: 200,
		WSPingInterval:     30 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	} else if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("PORT must be numeric: %q", v)
		}
		cfg.ListenAddr = ":" + v
	}

	if v := strings.TrimSpace(os.Getenv("TIME_CONTROL")); v != "" {
		tc, err := clock.ParseTimeControl(v)
		if err != nil {
			return nil, fmt.Errorf("TIME_CONTROL: %w", err)
		}
		cfg.TimeControl = tc
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_TICK_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClockTick = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_CONCURRENT_GAMES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentGames = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WS_PING_INTERVAL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WSPingInterval = time.Duration(n) * time.Second
		}
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ResultWebhookURL = strings.TrimSpace(os.Getenv("RESULT_WEBHOOK_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	return cfg, nil
}
