package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files from dir in priority order
// .env.<APP_ENV> > .env.local > .env. godotenv never overwrites variables
// that are already set, so the process environment always wins.
func LoadDotEnv(dir string) []string {
	candidates := []string{".env.local", ".env"}
	if env := os.Getenv("APP_ENV"); env != "" && env != "local" {
		candidates = append([]string{".env." + env}, candidates...)
	}

	var loaded []string
	for _, name := range candidates {
		f := filepath.Join(dir, name)
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
