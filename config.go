package triptalk

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds connection parameters.
type Config struct {
	Endpoint string // WebSocket URL (e.g. "ws://localhost:9000/chat")
	Token    string // auth token, appended to the connection URL
	UserID   string // identity of this participant
	UserRole string // "customer", "agency" or "admin"

	// Metrics, when set, registers the SDK's counters and gauges on the
	// given registerer. Nil disables instrumentation.
	Metrics prometheus.Registerer
}

// ConfigFromEnv loads configuration from TRIPTALK_* environment variables.
// A .env file is read first if present (ignored when missing).
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Endpoint: getEnv("TRIPTALK_ENDPOINT", "ws://localhost:9000/chat"),
		Token:    os.Getenv("TRIPTALK_TOKEN"),
		UserID:   os.Getenv("TRIPTALK_USER_ID"),
		UserRole: getEnv("TRIPTALK_USER_ROLE", "customer"),
	}

	if cfg.UserID == "" {
		return Config{}, fmt.Errorf("TRIPTALK_USER_ID must be set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
