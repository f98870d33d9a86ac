package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bettermarkers/internal/config"
	"bettermarkers/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	mediaDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithToolDisabled())
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	mediaDir := filepath.Join(base, "recordings")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatalf("mkdir recordings: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "bettermarkers", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, mediaDir: mediaDir}
}

// recording writes a well-formed MP4 and, when withSidecar is set, its sidecar.
func (e *cliTestEnv) recording(t *testing.T, name string, withSidecar bool) string {
	t.Helper()
	media := filepath.Join(e.mediaDir, name)
	testsupport.WriteMP4(t, media)
	if withSidecar {
		sidecar := strings.TrimSuffix(media, filepath.Ext(media)) + ".xmp"
		testsupport.WriteBytes(t, sidecar, testsupport.XMPPacket("<marker/>"))
	}
	return media
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
queue_path = %q
log_dir = %q

[embed]
tool_enabled = %t

[embed.finalize_retry]
max_attempts = %d
initial_delay_ms = 0
max_delay_ms = 0

[embed.recovery_retry]
max_attempts = %d
initial_delay_ms = 0
max_delay_ms = 0

[logging]
level = "error"
`,
		cfg.Paths.QueuePath,
		cfg.Paths.LogDir,
		cfg.Embed.ToolEnabled,
		cfg.Embed.FinalizeRetry.MaxAttempts,
		cfg.Embed.RecoveryRetry.MaxAttempts,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
