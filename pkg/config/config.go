package config

// Package config loads XVault's runtime configuration from an optional
// YAML file plus environment overrides. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.2.0

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"xvault/core"
	"xvault/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig core.Config

// Load reads XVAULT_CONFIG_FILE (or ./config/xvault.yaml if unset), merges
// XVAULT_-prefixed environment overrides on top, and unmarshals the result
// into core.Config. A missing config file is not an error: defaults plus
// environment overrides are enough to run.
func Load(env string) (*core.Config, error) {
	_ = godotenv.Load()

	AppConfig = core.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if file := utils.EnvOrDefault("XVAULT_CONFIG_FILE", ""); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("xvault")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	v.SetEnvPrefix("XVAULT")
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so bind each option to
	// its XVAULT_ variable explicitly.
	for _, key := range []string{"state_path", "gateway_base_url", "team_mode_enabled",
		"mutable_uri_token", "dev_fallback_enabled", "rate_limit_per_round", "audit_log_path"} {
		if err := v.BindEnv(key); err != nil {
			return nil, utils.Wrap(err, "bind env")
		}
	}

	if err := v.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the XVAULT_ENV environment
// variable to select a named deployment profile (currently unused beyond
// being threaded through to Load for forward compatibility).
func LoadFromEnv() (*core.Config, error) {
	return Load(utils.EnvOrDefault("XVAULT_ENV", ""))
}
