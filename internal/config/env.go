package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// loadEnvFile seeds the process environment from .env/.env.local before the
// configuration file is expanded. Existing variables are never overwritten;
// a missing file is fine.
func loadEnvFile() {
	for _, path := range []string{".env", ".env.local"} {
		if err := godotenv.Load(path); err == nil {
			slog.Debug("loaded environment file", slog.String("path", path))
			return
		}
	}
}
