package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEmbed(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.QueuePath == "" {
		return errors.New("paths.queue_path must be set")
	}
	return nil
}

func (c *Config) validateEmbed() error {
	if c.Embed.ToolEnabled {
		if c.Embed.Tool == "" {
			return errors.New("embed.tool must be set when embed.tool_enabled is true")
		}
		if c.Embed.ToolStartTimeoutMs <= 0 {
			return errors.New("embed.tool_start_timeout_ms must be positive")
		}
		if c.Embed.ToolFinishTimeoutMs <= 0 {
			return errors.New("embed.tool_finish_timeout_ms must be positive")
		}
	}
	if err := validateRetry("embed.finalize_retry", c.Embed.FinalizeRetry); err != nil {
		return err
	}
	return validateRetry("embed.recovery_retry", c.Embed.RecoveryRetry)
}

func validateRetry(section string, r Retry) error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("%s.max_attempts must be at least 1", section)
	}
	if r.InitialDelayMs < 0 || r.MaxDelayMs < 0 {
		return fmt.Errorf("%s delays must not be negative", section)
	}
	if r.MaxDelayMs < r.InitialDelayMs {
		return fmt.Errorf("%s.max_delay_ms must be >= initial_delay_ms", section)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
