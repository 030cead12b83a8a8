// Package config provides API key management utilities.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the selected provider.
var ErrNoAPIKey = errors.New("no API key configured")

// GetAPIKey returns the API key for the configured provider.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	envVar := "ANTHROPIC_API_KEY"
	configured := ""
	if cfg != nil {
		if cfg.Provider.Kind == "openai" {
			envVar = "OPENAI_API_KEY"
			configured = cfg.Provider.OpenAI.APIKey
		} else {
			configured = cfg.Provider.Anthropic.APIKey
		}
	}

	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}

	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// ValidateAPIKey performs basic validation on an API key for the given
// provider kind. It checks format but does not verify the key remotely.
func ValidateAPIKey(kind, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	prefix := "sk-ant-"
	if kind == "openai" {
		prefix = "sk-"
	}
	if !strings.HasPrefix(key, prefix) {
		return errors.New("invalid API key format: expected '" + prefix + "' prefix")
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	envVar := "ANTHROPIC_API_KEY"
	configured := ""
	if cfg != nil {
		if cfg.Provider.Kind == "openai" {
			envVar = "OPENAI_API_KEY"
			configured = cfg.Provider.OpenAI.APIKey
		} else {
			configured = cfg.Provider.Anthropic.APIKey
		}
	}

	if os.Getenv(envVar) != "" {
		return KeySourceEnv
	}

	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
