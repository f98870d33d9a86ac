package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEmbed()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.QueuePath) == "" {
		c.Paths.QueuePath = defaultQueuePath
	}
	if c.Paths.QueuePath, err = expandPath(strings.TrimSpace(c.Paths.QueuePath)); err != nil {
		return fmt.Errorf("paths.queue_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEmbed() {
	if value, ok := os.LookupEnv("BETTERMARKERS_EXIFTOOL"); ok && strings.TrimSpace(value) != "" {
		c.Embed.Tool = value
	}
	c.Embed.Tool = strings.TrimSpace(c.Embed.Tool)
	if c.Embed.Tool == "" {
		c.Embed.Tool = defaultTool
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
