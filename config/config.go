package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Realtime  RealtimeConfig
	Analytics AnalyticsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	HealthEnabled      bool   // disable when embedded behind another router
	HealthPath         string
}

// RealtimeConfig holds WebSocket and admin-ingress settings.
type RealtimeConfig struct {
	SocketPath      string // websocket upgrade path
	EventPath       string // admin event ingress path
	ServerToken     string // static bearer token for the admin ingress
	HandshakeSecret string // HMAC secret; falls back to ServerToken
}

// AnalyticsConfig holds the server-load broadcast settings.
type AnalyticsConfig struct {
	RefreshInterval time.Duration // floor 2s, applied by the cache
	MaxAge          time.Duration // floor = refresh interval
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	refreshMS := getEnvInt("ANALYTICS_REFRESH_INTERVAL_MS", 30000)
	maxAgeMS := getEnvInt("ANALYTICS_MAX_AGE_MS", refreshMS)

	serverToken := getEnv("REALTIME_SERVER_TOKEN", "")
	handshakeSecret := getEnv("REALTIME_HANDSHAKE_SECRET", "")
	if handshakeSecret == "" {
		handshakeSecret = serverToken
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "4001"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			HealthEnabled:      getEnv("HEALTH_ENABLED", "true") != "false",
			HealthPath:         getEnv("HEALTH_PATH", "/healthz"),
		},
		Realtime: RealtimeConfig{
			SocketPath:      getEnv("WS_PATH", "/realtime"),
			EventPath:       getEnv("EVENT_PATH", "/events"),
			ServerToken:     serverToken,
			HandshakeSecret: handshakeSecret,
		},
		Analytics: AnalyticsConfig{
			RefreshInterval: time.Duration(refreshMS) * time.Millisecond,
			MaxAge:          time.Duration(maxAgeMS) * time.Millisecond,
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
