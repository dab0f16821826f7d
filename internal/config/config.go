package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	HTTPAddr        string
	DBConnString    string
	ShutdownTimeout time.Duration
	LogLevel        string
	CORSOrigins     []string

	OrderAPIBase   string
	RoutingAPIBase string
	RoutingProfile string
	FetchTimeout   time.Duration
	JWTSecret      string

	SimulationTick     time.Duration
	ConfirmProximity   float64
	CartSaveDebounce   time.Duration
	StatusPollInterval time.Duration
	StatusPollDeadline time.Duration
}

// FromEnv builds Config with defaults, overridden by environment variables.
func FromEnv() Config {
	return Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8090"),
		DBConnString:    envOrDefault("DB_DSN", ""),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		CORSOrigins:     envList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		OrderAPIBase:   envOrDefault("ORDER_API_BASE", "http://localhost:8080/api"),
		RoutingAPIBase: envOrDefault("ROUTING_API_BASE", "https://routing.openstreetmap.de/routed-car/route/v1"),
		RoutingProfile: envOrDefault("ROUTING_PROFILE", "driving"),
		FetchTimeout:   envDuration("FETCH_TIMEOUT_SECONDS", 60*time.Second),
		JWTSecret:      envOrDefault("JWT_SECRET", ""),

		SimulationTick:     envMillis("SIM_TICK_MILLIS", 200*time.Millisecond),
		ConfirmProximity:   envFloat("CONFIRM_PROXIMITY_METERS", 80),
		CartSaveDebounce:   envMillis("CART_SAVE_DEBOUNCE_MILLIS", 300*time.Millisecond),
		StatusPollInterval: envDuration("STATUS_POLL_INTERVAL_SECONDS", 5*time.Second),
		StatusPollDeadline: envDuration("STATUS_POLL_DEADLINE_SECONDS", 60*time.Second),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		seconds, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		ms, err := strconv.Atoi(v)
		if err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
