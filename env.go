package loom

import "github.com/joho/godotenv"

// LoadEnv loads environment variables from .env files before provider
// auto-configuration. With no arguments it loads ".env" from the working
// directory; a missing default file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return nil
	}
	return godotenv.Load(paths...)
}
