// Package config binds source/target/LLM credentials from environment
// variables using viper's AutomaticEnv, the same env-first approach the
// rest of this codebase's sibling tools use for configuration. The richer
// YAML/env config file loader stays an external collaborator and is not
// reimplemented here.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"dbxmigrate/internal/core"
)

// Credentials holds a single engine's connection parameters.
type Credentials struct {
	DSN string
}

// LLMConfig holds the LLM provider selection and credential.
type LLMConfig struct {
	Provider string // "anthropic" or "none"
	APIKey   string
	Model    string
}

// Config is the full set of runtime configuration read from the
// environment for one pipeline invocation.
type Config struct {
	Source Credentials
	Target Credentials
	LLM    LLMConfig
}

// Load reads SRC_DSN / TGT_DSN / ANTHROPIC_API_KEY (and friends) from the
// environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("LLM_PROVIDER", "none")
	v.SetDefault("LLM_MODEL", "claude-3-5-haiku-20241022")

	cfg := &Config{
		Source: Credentials{DSN: v.GetString("SRC_DSN")},
		Target: Credentials{DSN: v.GetString("TGT_DSN")},
		LLM: LLMConfig{
			Provider: strings.ToLower(v.GetString("LLM_PROVIDER")),
			APIKey:   v.GetString("ANTHROPIC_API_KEY"),
			Model:    v.GetString("LLM_MODEL"),
		},
	}

	if cfg.Target.DSN == "" {
		return nil, &core.ConfigError{Err: fmt.Errorf("TGT_DSN is required")}
	}
	return cfg, nil
}
