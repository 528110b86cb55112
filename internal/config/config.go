// Package config loads the application configuration from environment
// variables and an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env   string `validate:"required,oneof=dev prod"`
	Addon struct {
		Name     string `validate:"required"`
		Version  string
		ScriptID string
	}
	// Locale forces the active-user locale; empty falls back to LANG.
	Locale string
	Log    struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Store struct {
		// Path to the SQLite record store; empty disables persistence.
		Path          string
		RetentionDays int    `validate:"min=1"`
		PurgeSchedule string // cron spec; empty disables the purge job
	}
	Retry struct {
		MaxRetries int `validate:"min=0,max=6"`
		Verbose    bool
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.Addon.Name = getenv("ADDON_NAME", "errguard")
	c.Addon.Version = os.Getenv("ADDON_VERSION")
	c.Addon.ScriptID = os.Getenv("SCRIPT_ID")
	c.Locale = os.Getenv("FORCE_LOCALE")
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = os.Getenv("LOG_FILE")
	c.Store.Path = getenv("STORE_PATH", "data/errguard.db")
	c.Store.RetentionDays = getenvInt("STORE_RETENTION_DAYS", 30)
	c.Store.PurgeSchedule = getenv("PURGE_SCHEDULE", "@daily")
	c.Retry.MaxRetries = getenvInt("MAX_RETRIES", 0)
	c.Retry.Verbose = os.Getenv("RETRY_VERBOSE") == "true"

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
