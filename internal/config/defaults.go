package config

const (
	defaultConfigPath          = "~/.config/bettermarkers/config.toml"
	defaultQueuePath           = "~/.local/share/bettermarkers/pending-embed.json"
	defaultLogDir              = "~/.local/share/bettermarkers/logs"
	defaultTool                = "exiftool"
	defaultToolStartTimeoutMs  = 5000
	defaultToolFinishTimeoutMs = 30000
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default retry presets. Finalize runs while the encoder may still hold the file.
var (
	DefaultFinalizeRetry = Retry{MaxAttempts: 8, InitialDelayMs: 120, MaxDelayMs: 2000}
	DefaultRecoveryRetry = Retry{MaxAttempts: 3, InitialDelayMs: 250, MaxDelayMs: 1000}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			QueuePath: defaultQueuePath,
			LogDir:    defaultLogDir,
		},
		Embed: Embed{
			Tool:                defaultTool,
			ToolEnabled:         true,
			ToolStartTimeoutMs:  defaultToolStartTimeoutMs,
			ToolFinishTimeoutMs: defaultToolFinishTimeoutMs,
			FinalizeRetry:       DefaultFinalizeRetry,
			RecoveryRetry:       DefaultRecoveryRetry,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
