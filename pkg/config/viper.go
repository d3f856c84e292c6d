// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file and LISTINGS_* environment
// variables, after loading any .env file into the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override, e.g. LISTINGS_SCRAPE_LIMIT=5.
const EnvPrefix = "LISTINGS"

// DotEnvFile is loaded into the environment before viper reads it. Variables already set win.
var DotEnvFile = ".env"

// InitConfig prepares v: it loads DotEnvFile if present, binds LISTINGS_* environment
// variables and reads cfgFile, or searches the standard locations when cfgFile is empty.
// A missing config in the search path is not an error; a missing explicit cfgFile is.
func InitConfig(v *viper.Viper, cfgFile string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	// --- .env ---
	if err := godotenv.Load(DotEnvFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", DotEnvFile, err)
		}
	} else {
		logger.Info("Loaded environment file", zap.String("path", DotEnvFile))
	}

	// --- Environment Variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// --- Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")                        // Current working directory
		v.AddConfigPath("/etc/listing-extractor/")  // System-wide configuration
		v.AddConfigPath("$HOME/.listing-extractor") // User-specific configuration
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			logger.Warn("Config file not found; using defaults and environment variables.")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	logger.Info("Using config file", zap.String("path", v.ConfigFileUsed()))
	return nil
}
