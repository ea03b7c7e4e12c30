package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Bootstrap holds the process-level settings throttlecore needs
// before it can build an Engine at all: where to listen, which rule
// file to load and how often to reload it, and how to log. It is
// deliberately separate from Spec/Snapshot — Bootstrap configures the
// process, Spec/Snapshot configure the rate-limiting rules themselves,
// and the two are read from different places at different rates.
type Bootstrap struct {
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	RulesPath      string
	ReloadInterval time.Duration

	LogLevel string
}

// LoadBootstrap reads Bootstrap from the environment and an optional
// .env file in the working directory.
func LoadBootstrap() *Bootstrap {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("THROTTLE_GRACEFUL_TIMEOUT_SEC", 15)
	reloadSec := getEnvInt("THROTTLE_RULES_RELOAD_SEC", 30)

	return &Bootstrap{
		Addr:            getEnv("THROTTLE_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,
		RulesPath:       getEnv("THROTTLE_RULES_PATH", "rules.yaml"),
		ReloadInterval:  time.Duration(reloadSec) * time.Second,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment reports whether Env names a development environment.
func (b *Bootstrap) IsDevelopment() bool {
	return b.Env == "development" || b.Env == "debug"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
