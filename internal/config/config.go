package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"bettermarkers/internal/recovery"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	QueuePath string `toml:"queue_path"`
	LogDir    string `toml:"log_dir"`
}

// Retry describes one exponential backoff preset.
type Retry struct {
	MaxAttempts    int `toml:"max_attempts"`
	InitialDelayMs int `toml:"initial_delay_ms"`
	MaxDelayMs     int `toml:"max_delay_ms"`
}

// InitialDelay returns the first backoff delay.
func (r Retry) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r Retry) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// Embed contains configuration for writing XMP into recordings.
type Embed struct {
	// Tool is the external metadata editor tried before the built-in patcher.
	// It is resolved through PATH unless it contains a path separator.
	Tool                string `toml:"tool"`
	ToolEnabled         bool   `toml:"tool_enabled"`
	ToolStartTimeoutMs  int    `toml:"tool_start_timeout_ms"`
	ToolFinishTimeoutMs int    `toml:"tool_finish_timeout_ms"`
	// FinalizeRetry applies when a recording has just been closed and the
	// encoder may still be releasing the file.
	FinalizeRetry Retry `toml:"finalize_retry"`
	// RecoveryRetry applies to manually triggered recovery sweeps. Startup
	// sweeps always make exactly one attempt per job.
	RecoveryRetry Retry `toml:"recovery_retry"`
}

// ToolStartTimeout bounds how long the external tool may take to launch.
func (e Embed) ToolStartTimeout() time.Duration {
	return time.Duration(e.ToolStartTimeoutMs) * time.Millisecond
}

// ToolFinishTimeout bounds how long the external tool may run.
func (e Embed) ToolFinishTimeout() time.Duration {
	return time.Duration(e.ToolFinishTimeoutMs) * time.Millisecond
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bettermarkers.
//
// Configuration sections by subsystem:
//   - Paths: recovery queue file and log directory
//   - Embed: external tool invocation and retry presets
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Embed   Embed   `toml:"embed"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error: defaults are used
// and the returned bool is false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bettermarkers.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory and the recovery queue's parent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.QueuePath) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.QueuePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueLockPath returns the lock file guarding recovery sweeps of the queue.
func (c *Config) QueueLockPath() string {
	return recovery.SweepLockPath(c.Paths.QueuePath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
