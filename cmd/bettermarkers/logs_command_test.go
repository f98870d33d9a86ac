package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bettermarkers/internal/logging"
)

func TestLogsCommandFiltersByCorrelation(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := strings.Join([]string{
		`{"msg":"recovery sweep begin","correlation_id":"aaa"}`,
		`{"msg":"recovery sweep begin","correlation_id":"bbb"}`,
		`{"msg":"recovery sweep complete","correlation_id":"aaa"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--correlation", "aaa"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "sweep complete")
	if strings.Contains(out, "bbb") {
		t.Fatalf("expected bbb lines filtered out, got %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), "\n") != 0 {
		t.Fatalf("expected a single line, got %q", out)
	}
}
