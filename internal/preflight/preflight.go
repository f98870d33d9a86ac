package preflight

import (
	"path/filepath"

	"bettermarkers/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Queue directory", filepath.Dir(cfg.Paths.QueuePath)),
		CheckFileAccess("Recovery queue", cfg.Paths.QueuePath),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}
