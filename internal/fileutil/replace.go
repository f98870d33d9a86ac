package fileutil

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrBackupFailed reports that the original could not be moved aside. The
	// original is untouched.
	ErrBackupFailed = errors.New("create backup before atomic replace")
	// ErrPublishFailed reports that the replacement could not be moved into
	// place. The original has been restored from its backup when possible.
	ErrPublishFailed = errors.New("replace original with new file")
)

// Replacer swaps a fully written replacement file into place using a
// backup-then-rename protocol. At every step the canonical path holds either
// the original content or the complete replacement; it is briefly absent only
// between the two renames, during which the original survives as the backup.
type Replacer struct {
	Rename func(oldpath, newpath string) error
	Remove func(path string) error
}

// NewReplacer returns a Replacer backed by the os package.
func NewReplacer() Replacer {
	return Replacer{Rename: os.Rename, Remove: os.Remove}
}

func (r Replacer) rename(oldpath, newpath string) error {
	if r.Rename == nil {
		return os.Rename(oldpath, newpath)
	}
	return r.Rename(oldpath, newpath)
}

func (r Replacer) remove(path string) error {
	if r.Remove == nil {
		return os.Remove(path)
	}
	return r.Remove(path)
}

// Replace moves path to backup, moves replacement to path, and drops backup.
// The replacement file is removed on failure; a stale backup from an earlier
// crash is cleared before starting.
func (r Replacer) Replace(path, replacement, backup string) error {
	if err := r.remove(backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = r.remove(replacement)
		return fmt.Errorf("%w: clear stale backup %s: %v", ErrBackupFailed, backup, err)
	}

	if err := r.rename(path, backup); err != nil {
		_ = r.remove(replacement)
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	if err := r.rename(replacement, path); err != nil {
		if restoreErr := r.rename(backup, path); restoreErr != nil {
			return fmt.Errorf("%w: %v (restore from %s failed: %v)", ErrPublishFailed, err, backup, restoreErr)
		}
		_ = r.remove(replacement)
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	// The new content is in place; a leftover backup is only wasted space.
	_ = r.remove(backup)
	return nil
}

// Restore moves backup back to path when path is missing and backup exists,
// the state Replace leaves if the process dies between its two renames. It
// reports whether a restore happened.
func (r Replacer) Restore(path, backup string) (bool, error) {
	if _, err := os.Lstat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if _, err := os.Lstat(backup); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat backup %s: %w", backup, err)
	}
	if err := r.rename(backup, path); err != nil {
		return false, fmt.Errorf("restore %s from %s: %w", path, backup, err)
	}
	return true, nil
}
