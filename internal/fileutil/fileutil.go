package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyChunkSize bounds the memory used by CopyRange.
const CopyChunkSize = 1 << 20

// CopyRange copies length bytes starting at offset in src to dst in chunks of
// at most CopyChunkSize. A short source is reported as io.ErrUnexpectedEOF.
func CopyRange(dst io.Writer, src io.ReaderAt, offset, length int64) error {
	if offset < 0 || length < 0 {
		return fmt.Errorf("copy range: invalid offset %d or length %d", offset, length)
	}
	if length == 0 {
		return nil
	}
	section := io.NewSectionReader(src, offset, length)
	buf := make([]byte, min(length, CopyChunkSize))
	written, err := io.CopyBuffer(onlyWriter{dst}, section, buf)
	if err != nil {
		return fmt.Errorf("copy range at %d: %w", offset, err)
	}
	if written != length {
		return fmt.Errorf("copy range at %d: copied %d of %d bytes: %w", offset, written, length, io.ErrUnexpectedEOF)
	}
	return nil
}

// onlyWriter hides ReadFrom on *os.File so io.CopyBuffer honours our buffer.
type onlyWriter struct {
	io.Writer
}

// WriteFileAtomic writes data to a temp file beside path, syncs it, and renames
// it over path. Parent directories are created as needed. A crash at any point
// leaves either the previous file or the new one, never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
