package recovery

import (
	"os"
	"path/filepath"
	"strings"
)

// StartupAttempts is the number of embed attempts a startup sweep makes per job.
const StartupAttempts = 1

// Action is what a startup sweep does with a queued job.
type Action int

const (
	RetryOnce Action = iota
	DropMissingMedia
	DropUnsupportedMedia
	DropMissingSidecar
)

func (a Action) String() string {
	switch a {
	case RetryOnce:
		return "retry_once"
	case DropMissingMedia:
		return "drop_missing_media"
	case DropUnsupportedMedia:
		return "drop_unsupported_media"
	case DropMissingSidecar:
		return "drop_missing_sidecar"
	default:
		return "unknown"
	}
}

// Drops reports whether the job should be removed without an embed attempt.
func (a Action) Drops() bool {
	return a != RetryOnce
}

// Decision is the outcome of Decide. SidecarPath is set for RetryOnce and
// DropMissingSidecar.
type Decision struct {
	Action      Action
	SidecarPath string
}

// IsSupportedMedia reports whether path has an .mp4 or .mov extension.
func IsSupportedMedia(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov":
		return true
	default:
		return false
	}
}

// SidecarPathFor replaces the last extension of mediaPath with .xmp.
func SidecarPathFor(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".xmp"
}

// Decide classifies a queued media path for a startup sweep. Checks run in
// order: media exists, extension supported, sidecar exists.
func Decide(mediaPath string) Decision {
	if !exists(mediaPath) {
		return Decision{Action: DropMissingMedia}
	}
	if !IsSupportedMedia(mediaPath) {
		return Decision{Action: DropUnsupportedMedia}
	}
	sidecar := SidecarPathFor(mediaPath)
	if !exists(sidecar) {
		return Decision{Action: DropMissingSidecar, SidecarPath: sidecar}
	}
	return Decision{Action: RetryOnce, SidecarPath: sidecar}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
