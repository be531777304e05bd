// Package config provides JSON-config-file-plus-environment configuration
// loading and validation.
//
// This package reads configuration from a JSON file named by the CFG_PATH
// environment variable (default "./config.json"), the way the original
// implementation's conf.rs does, then lets environment variables override
// or fill in anything the file doesn't set, using struct tags.
//
// Usage:
//
//	import "github.com/chris-alexander-pop/busgateway/pkg/config"
//
//	type AppConfig struct {
//		Port     int    `json:"port" env:"PORT" env-default:"8080"`
//		LogLevel string `env:"LOG_LEVEL" env-default:"INFO" validate:"required"`
//	}
//
//	var cfg AppConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"os"

	"github.com/chris-alexander-pop/busgateway/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// defaultConfigPath mirrors conf.rs's own default when CFG_PATH is unset.
const defaultConfigPath = "./config.json"

// Load reads configuration from the JSON file named by CFG_PATH (default
// "./config.json"), overlaying environment variables and defaults on top,
// and validates the result. If the config file does not exist, Load falls
// back to environment variables and defaults alone, since every field this
// application needs can also be supplied purely through the environment.
func Load[T any](cfg *T) error {
	path := os.Getenv("CFG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	// 1. Load from the JSON config file if it exists; cleanenv overlays
	// environment variables and env-default values on top of whatever the
	// file sets, so CFG_PATH and the environment can be combined freely.
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		// No config file at path: fall back to environment variables and
		// defaults alone.
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return errors.Wrap(err, "failed to read env config")
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	// 2. Validate the struct
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "config validation failed")
	}

	return nil
}
