package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

const Debug = false

// Load reads a .env file if one is present. Real deployments inject
// environment variables directly, so a missing file is not an error.
func Load() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, using process environment")
		return
	}
	slog.Info("loaded environment variables from .env")
}

func Require(name string) (string, error) {
	v, exists := os.LookupEnv(name)
	if !exists || v == "" {
		return "", fmt.Errorf("missing required environment variable %s", name)
	}
	return v, nil
}

func Optional(name, fallback string) string {
	if v, exists := os.LookupEnv(name); exists && v != "" {
		return v
	}
	return fallback
}
