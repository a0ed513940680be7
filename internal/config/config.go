package config

import (
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config carries everything the server binary needs from the environment.
type Config struct {
	HTTPAddr string

	GatewayBaseURL string
	GatewayKeyID   string
	GatewaySecret  string
	GatewayTimeout time.Duration

	SweepInterval time.Duration
	SweepCutoff   time.Duration

	AllowedOrigins []string
}

func Load() Config {
	return Config{
		HTTPAddr:       getenv("CHECKOUT_HTTP_ADDR", ":8080"),
		GatewayBaseURL: getenv("CHECKOUT_GATEWAY_BASE_URL", "https://api.fastpay.example"),
		GatewayKeyID:   os.Getenv("CHECKOUT_GATEWAY_KEY_ID"),
		GatewaySecret:  os.Getenv("CHECKOUT_GATEWAY_SECRET"),
		GatewayTimeout: getdur("CHECKOUT_GATEWAY_TIMEOUT", 10*time.Second),
		SweepInterval:  getdur("CHECKOUT_SWEEP_INTERVAL", 5*time.Minute),
		SweepCutoff:    getdur("CHECKOUT_SWEEP_CUTOFF", 30*time.Minute),
		AllowedOrigins: []string{getenv("CHECKOUT_ALLOWED_ORIGIN", "*")},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
