package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bettermarkers/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry delays are zeroed so tests never sleep unless they opt in.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.QueuePath = filepath.Join(base, "state", "pending-embed.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Embed.FinalizeRetry = config.Retry{MaxAttempts: 3}
	cfgVal.Embed.RecoveryRetry = config.Retry{MaxAttempts: 2}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithToolDisabled turns off the external metadata tool.
func WithToolDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Embed.ToolEnabled = false
	}
}

// WithStubbedBinaries writes stub executables that exit successfully for the
// provided names and prepends them to PATH. If names is empty, exiftool is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"exiftool"}
		}
		for _, name := range names {
			StubBinary(b.t, b.baseDir, name, "exit 0")
		}
	}
}

// WithStubScript installs a single stub executable whose body is the given
// shell snippet. Arguments are available as "$@".
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		StubBinary(b.t, b.baseDir, name, body)
		b.cfg.Embed.Tool = name
	}
}

// StubBinary writes an executable shell script into baseDir/bin and prepends
// that directory to PATH for the rest of the test.
func StubBinary(t testing.TB, baseDir, name, body string) string {
	t.Helper()
	binDir := filepath.Join(baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	script := []byte("#!/bin/sh\n" + body + "\n")
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
