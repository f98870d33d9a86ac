package fileutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyRange(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	var dst bytes.Buffer

	if err := CopyRange(&dst, src, 2, 5); err != nil {
		t.Fatal(err)
	}
	if dst.String() != "23456" {
		t.Fatalf("content mismatch: got %q", dst.String())
	}
}

func TestCopyRangeSpansChunks(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefgh"), (CopyChunkSize/8)*2+3)
	var dst bytes.Buffer

	if err := CopyRange(&dst, bytes.NewReader(content), 0, int64(len(content))); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst.Bytes(), content) {
		t.Fatal("multi-chunk copy mismatch")
	}
}

func TestCopyRangeZeroLength(t *testing.T) {
	var dst bytes.Buffer
	if err := CopyRange(&dst, bytes.NewReader(nil), 0, 0); err != nil {
		t.Fatal(err)
	}
	if dst.Len() != 0 {
		t.Fatalf("expected nothing copied, got %d bytes", dst.Len())
	}
}

func TestCopyRangeShortSource(t *testing.T) {
	var dst bytes.Buffer
	err := CopyRange(&dst, bytes.NewReader([]byte("abc")), 1, 10)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "deeper", "queue.json")

	if err := WriteFileAtomic(target, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFixture(t *testing.T, path string) string {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(got)
}

func TestReplaceSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.mp4")
	tmp := path + ".tmp"
	bak := path + ".bak"
	writeFixture(t, path, "original")
	writeFixture(t, tmp, "embedded")
	writeFixture(t, bak, "stale backup")

	if err := NewReplacer().Replace(path, tmp, bak); err != nil {
		t.Fatal(err)
	}
	if got := readFixture(t, path); got != "embedded" {
		t.Fatalf("expected replacement content, got %q", got)
	}
	for _, leftover := range []string{tmp, bak} {
		if _, err := os.Stat(leftover); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", leftover, err)
		}
	}
}

func TestReplaceBackupRenameFailureLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.mp4")
	tmp := path + ".tmp"
	writeFixture(t, path, "original")
	writeFixture(t, tmp, "embedded")

	r := NewReplacer()
	r.Rename = func(oldpath, newpath string) error {
		return errors.New("sharing violation")
	}

	err := r.Replace(path, tmp, path+".bak")
	if !errors.Is(err, ErrBackupFailed) {
		t.Fatalf("expected ErrBackupFailed, got %v", err)
	}
	if got := readFixture(t, path); got != "original" {
		t.Fatalf("original modified: %q", got)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("expected temp removed, stat err=%v", err)
	}
}

func TestReplacePublishFailureRestoresOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.mp4")
	tmp := path + ".tmp"
	bak := path + ".bak"
	writeFixture(t, path, "original")
	writeFixture(t, tmp, "embedded")

	calls := 0
	r := NewReplacer()
	r.Rename = func(oldpath, newpath string) error {
		calls++
		if calls == 2 {
			return errors.New("file locked by encoder")
		}
		return os.Rename(oldpath, newpath)
	}

	err := r.Replace(path, tmp, bak)
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
	if got := readFixture(t, path); got != "original" {
		t.Fatalf("expected original restored, got %q", got)
	}
	if _, err := os.Stat(bak); !os.IsNotExist(err) {
		t.Fatalf("expected backup consumed by restore, stat err=%v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("expected temp removed, stat err=%v", err)
	}
}

func TestRestoreAfterCrashBetweenRenames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.mp4")
	bak := path + ".bak"
	writeFixture(t, bak, "original")
	writeFixture(t, path+".tmp", "half written")

	restored, err := NewReplacer().Restore(path, bak)
	if err != nil || !restored {
		t.Fatalf("Restore: restored=%v err=%v", restored, err)
	}
	if got := readFixture(t, path); got != "original" {
		t.Fatalf("expected original back in place, got %q", got)
	}
	if _, err := os.Stat(bak); !os.IsNotExist(err) {
		t.Fatalf("expected backup consumed, stat err=%v", err)
	}
}

func TestRestoreLeavesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.mp4")
	bak := path + ".bak"
	writeFixture(t, path, "published")
	writeFixture(t, bak, "stale")

	restored, err := NewReplacer().Restore(path, bak)
	if err != nil || restored {
		t.Fatalf("Restore: restored=%v err=%v", restored, err)
	}
	if got := readFixture(t, path); got != "published" {
		t.Fatalf("existing file changed: %q", got)
	}

	restored, err = NewReplacer().Restore(filepath.Join(dir, "absent.mp4"), filepath.Join(dir, "absent.bak"))
	if err != nil || restored {
		t.Fatalf("expected no-op without backup, restored=%v err=%v", restored, err)
	}
}

func TestRestoreRenameFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.mp4")
	writeFixture(t, path+".bak", "original")

	r := NewReplacer()
	r.Rename = func(string, string) error { return errors.New("read-only filesystem") }
	if _, err := r.Restore(path, path+".bak"); err == nil {
		t.Fatal("expected restore error")
	}
}
