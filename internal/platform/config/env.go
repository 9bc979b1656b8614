// Package config loads command configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses environment variables into target and validates the result
// against its `validate` struct tags.
func Load(target any) error {
	if err := ParseEnv(target); err != nil {
		return err
	}
	return Validate(target)
}
