package recovery

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDecide(t *testing.T) {
	dir := t.TempDir()
	ready := filepath.Join(dir, "ready.MP4")
	touch(t, ready)
	touch(t, filepath.Join(dir, "ready.xmp"))

	noSidecar := filepath.Join(dir, "nosidecar.mov")
	touch(t, noSidecar)

	mkv := filepath.Join(dir, "clip.mkv")
	touch(t, mkv)
	touch(t, filepath.Join(dir, "clip.xmp"))

	tests := []struct {
		name    string
		media   string
		action  Action
		sidecar string
	}{
		{"missing media", filepath.Join(dir, "gone.mp4"), DropMissingMedia, ""},
		{"unsupported extension", mkv, DropUnsupportedMedia, ""},
		{"missing sidecar", noSidecar, DropMissingSidecar, filepath.Join(dir, "nosidecar.xmp")},
		{"retry", ready, RetryOnce, filepath.Join(dir, "ready.xmp")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.media)
			if got.Action != tt.action {
				t.Fatalf("action = %s, want %s", got.Action, tt.action)
			}
			if got.SidecarPath != tt.sidecar {
				t.Fatalf("sidecar = %q, want %q", got.SidecarPath, tt.sidecar)
			}
		})
	}
}

func TestSidecarPathForReplacesLastExtension(t *testing.T) {
	tests := map[string]string{
		"/rec/a.mp4":         "/rec/a.xmp",
		"/rec/show.2024.mov": "/rec/show.2024.xmp",
		"/rec/noext":         "/rec/noext.xmp",
	}
	for in, want := range tests {
		if got := SidecarPathFor(in); got != want {
			t.Fatalf("SidecarPathFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestActionNames(t *testing.T) {
	names := map[Action]string{
		RetryOnce:            "retry_once",
		DropMissingMedia:     "drop_missing_media",
		DropUnsupportedMedia: "drop_unsupported_media",
		DropMissingSidecar:   "drop_missing_sidecar",
	}
	for action, want := range names {
		if action.String() != want {
			t.Fatalf("%d.String() = %q, want %q", action, action.String(), want)
		}
	}
	if RetryOnce.Drops() || !DropMissingSidecar.Drops() {
		t.Fatal("unexpected Drops classification")
	}
	if StartupAttempts != 1 {
		t.Fatalf("StartupAttempts = %d", StartupAttempts)
	}
}
