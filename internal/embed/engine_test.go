package embed

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bettermarkers/internal/atom"
	"bettermarkers/internal/fileutil"
	"bettermarkers/internal/testsupport"
)

func newTestEngine(tool Tool) *Engine {
	e := New(tool, nil)
	e.sleep = func(time.Duration) {}
	return e
}

func buildUUID(t *testing.T, payload []byte) []byte {
	t.Helper()
	box, err := atom.BuildUUID(payload)
	if err != nil {
		t.Fatalf("BuildUUID: %v", err)
	}
	return box
}

func countXMPUUID(t *testing.T, path string) int {
	t.Helper()
	data := testsupport.ReadBytes(t, path)
	atoms, err := atom.ParseChildren(data, 0, len(data))
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	n := 0
	for _, a := range atoms {
		if a.Type == atom.TypeUUID && atom.IsXMPPayload(data[a.HeaderEnd():a.End()]) {
			n++
		}
	}
	return n
}

func assertNoScratchFiles(t *testing.T, media string) {
	t.Helper()
	for _, suffix := range []string{TempSuffix, BackupSuffix} {
		if _, err := os.Stat(media + suffix); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s to be absent, stat err=%v", media+suffix, err)
		}
	}
}

func TestEmbedXMPAppendsUUIDAtom(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	original := testsupport.WriteMP4(t, media)
	payload := testsupport.XMPPacket("markers")

	res := newTestEngine(Tool{}).EmbedXMP(context.Background(), media, payload)
	if !res.OK {
		t.Fatalf("EmbedXMP failed: %s", res)
	}

	got := testsupport.ReadBytes(t, media)
	want := append(append([]byte{}, original...), buildUUID(t, payload)...)
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected file layout: got %d bytes want %d", len(got), len(want))
	}
	found, err := atom.HasXMP(media)
	if err != nil || !found {
		t.Fatalf("expected XMP after embed: found=%v err=%v", found, err)
	}
	assertNoScratchFiles(t, media)
}

func TestEmbedXMPReplacesExistingAtom(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mov")
	original := testsupport.WriteMP4(t, media)
	engine := newTestEngine(Tool{})

	if res := engine.EmbedXMP(context.Background(), media, testsupport.XMPPacket("first")); !res.OK {
		t.Fatalf("first embed failed: %s", res)
	}
	second := testsupport.XMPPacket("second, longer than the first")
	if res := engine.EmbedXMP(context.Background(), media, second); !res.OK {
		t.Fatalf("second embed failed: %s", res)
	}
	if n := countXMPUUID(t, media); n != 1 {
		t.Fatalf("expected exactly one XMP uuid atom, got %d", n)
	}
	want := append(append([]byte{}, original...), buildUUID(t, second)...)
	if !bytes.Equal(testsupport.ReadBytes(t, media), want) {
		t.Fatal("replacement did not produce original+new box")
	}
}

func TestEmbedXMPIsIdempotent(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	testsupport.WriteMP4(t, media)
	engine := newTestEngine(Tool{})
	payload := testsupport.XMPPacket("same")

	if res := engine.EmbedXMP(context.Background(), media, payload); !res.OK {
		t.Fatalf("first embed failed: %s", res)
	}
	once := testsupport.ReadBytes(t, media)
	if res := engine.EmbedXMP(context.Background(), media, payload); !res.OK {
		t.Fatalf("second embed failed: %s", res)
	}
	if !bytes.Equal(once, testsupport.ReadBytes(t, media)) {
		t.Fatal("embedding the same payload twice changed the file")
	}
}

func TestEmbedXMPReplacesSameSizeBoxBeforeMdat(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	ftyp := testsupport.Box("ftyp", []byte("isom"))
	moov := testsupport.Box("moov", testsupport.Box("mvhd", make([]byte, 20)))
	mdat := testsupport.Box("mdat", bytes.Repeat([]byte{1}, 64))
	old := testsupport.XMPUUIDBox(testsupport.XMPPacket("old"))
	testsupport.WriteBytes(t, media, bytes.Join([][]byte{ftyp, old, moov, mdat}, nil))

	payload := testsupport.XMPPacket("new")
	if res := newTestEngine(Tool{}).EmbedXMP(context.Background(), media, payload); !res.OK {
		t.Fatalf("EmbedXMP failed: %s", res)
	}
	want := bytes.Join([][]byte{ftyp, buildUUID(t, payload), moov, mdat}, nil)
	if !bytes.Equal(testsupport.ReadBytes(t, media), want) {
		t.Fatal("expected the XMP box to be replaced at its original position")
	}
}

func TestEmbedXMPBlanksResizedBoxBeforeMdat(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	ftyp := testsupport.Box("ftyp", []byte("isom"))
	moov := testsupport.Box("moov", testsupport.Box("mvhd", make([]byte, 20)))
	mdat := testsupport.Box("mdat", bytes.Repeat([]byte{1}, 64))
	old := testsupport.XMPUUIDBox(testsupport.XMPPacket("old"))
	testsupport.WriteBytes(t, media, bytes.Join([][]byte{ftyp, old, moov, mdat}, nil))

	payload := testsupport.XMPPacket("new markers that do not fit the old box")
	engine := newTestEngine(Tool{})
	if res := engine.EmbedXMP(context.Background(), media, payload); !res.OK {
		t.Fatalf("EmbedXMP failed: %s", res)
	}

	free := testsupport.Box("free", make([]byte, len(old)-8))
	want := bytes.Join([][]byte{ftyp, free, moov, mdat, buildUUID(t, payload)}, nil)
	got := testsupport.ReadBytes(t, media)
	if !bytes.Equal(got, want) {
		t.Fatal("expected old XMP box blanked in place and new box appended")
	}
	if bytes.Index(got, mdat) != len(ftyp)+len(old)+len(moov) {
		t.Fatal("mdat moved")
	}

	// The appended box now trails mdat, so later edits replace it directly.
	again := testsupport.XMPPacket("x")
	if res := engine.EmbedXMP(context.Background(), media, again); !res.OK {
		t.Fatalf("second EmbedXMP failed: %s", res)
	}
	want = bytes.Join([][]byte{ftyp, free, moov, mdat, buildUUID(t, again)}, nil)
	if !bytes.Equal(testsupport.ReadBytes(t, media), want) {
		t.Fatal("expected trailing XMP box replaced in place")
	}
	if n := countXMPUUID(t, media); n != 1 {
		t.Fatalf("expected one XMP uuid atom, got %d", n)
	}
}

func TestEmbedXMPRestoresInterruptedReplace(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	original := testsupport.MinimalMP4()
	testsupport.WriteBytes(t, media+BackupSuffix, original)
	testsupport.WriteBytes(t, media+TempSuffix, original[:10])

	payload := testsupport.XMPPacket("after crash")
	if res := newTestEngine(Tool{}).EmbedXMP(context.Background(), media, payload); !res.OK {
		t.Fatalf("EmbedXMP failed: %s", res)
	}
	want := append(append([]byte{}, original...), buildUUID(t, payload)...)
	if !bytes.Equal(testsupport.ReadBytes(t, media), want) {
		t.Fatal("expected embed on top of the restored original")
	}
	assertNoScratchFiles(t, media)
}

func TestEmbedXMPRestoreFailureIsIO(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	testsupport.WriteBytes(t, media+BackupSuffix, testsupport.MinimalMP4())
	engine := newTestEngine(Tool{})
	engine.replacer = fileutil.Replacer{
		Rename: func(string, string) error { return errors.New("permission denied") },
	}

	res := engine.EmbedXMP(context.Background(), media, testsupport.XMPPacket("x"))
	if res.OK || res.Kind != KindIO || !res.Retryable {
		t.Fatalf("expected retryable IO failure, got %+v", res)
	}
	if _, err := os.Stat(media + BackupSuffix); err != nil {
		t.Fatalf("backup must survive a failed restore: %v", err)
	}
}

func TestEmbedXMPIgnoresForeignUUIDAtoms(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	foreign := testsupport.Box("uuid", bytes.Repeat([]byte{0x11}, 16), testsupport.XMPPacket("not ours"))
	original := append(testsupport.MinimalMP4(), foreign...)
	testsupport.WriteBytes(t, media, original)

	payload := testsupport.XMPPacket("ours")
	if res := newTestEngine(Tool{}).EmbedXMP(context.Background(), media, payload); !res.OK {
		t.Fatalf("EmbedXMP failed: %s", res)
	}
	want := append(append([]byte{}, original...), buildUUID(t, payload)...)
	if !bytes.Equal(testsupport.ReadBytes(t, media), want) {
		t.Fatal("foreign uuid atom should be preserved and XMP appended")
	}
}

func TestEmbedXMPClosesOpenEndedFinalAtom(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	ftyp := testsupport.Box("ftyp", []byte("isom"))
	mdat := testsupport.Box("mdat", bytes.Repeat([]byte{2}, 40))
	openEnded := append([]byte{}, mdat...)
	copy(openEnded[0:4], []byte{0, 0, 0, 0})
	testsupport.WriteBytes(t, media, append(append([]byte{}, ftyp...), openEnded...))

	payload := testsupport.XMPPacket("tail")
	if res := newTestEngine(Tool{}).EmbedXMP(context.Background(), media, payload); !res.OK {
		t.Fatalf("EmbedXMP failed: %s", res)
	}
	want := bytes.Join([][]byte{ftyp, mdat, buildUUID(t, payload)}, nil)
	if !bytes.Equal(testsupport.ReadBytes(t, media), want) {
		t.Fatal("expected open-ended mdat to receive an explicit size")
	}
}

func TestEmbedXMPTruncatedFileIsRetryable(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	full := testsupport.MinimalMP4()
	truncated := full[:len(full)-3]
	testsupport.WriteBytes(t, media, truncated)

	res := newTestEngine(Tool{}).EmbedXMP(context.Background(), media, testsupport.XMPPacket("x"))
	if res.OK || res.Kind != KindParse || !res.Retryable {
		t.Fatalf("expected retryable parse failure, got %+v", res)
	}
	if !bytes.Equal(testsupport.ReadBytes(t, media), truncated) {
		t.Fatal("media must be untouched on parse failure")
	}
	assertNoScratchFiles(t, media)
}

func TestEmbedXMPMissingMedia(t *testing.T) {
	media := filepath.Join(t.TempDir(), "absent.mp4")
	res := newTestEngine(Tool{}).EmbedXMP(context.Background(), media, testsupport.XMPPacket("x"))
	if res.OK || res.Kind != KindMissingInput || res.Retryable {
		t.Fatalf("expected non-retryable missing input, got %+v", res)
	}
	assertNoScratchFiles(t, media)
}

func TestEmbedXMPBackupFailureLeavesOriginal(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	original := testsupport.WriteMP4(t, media)
	engine := newTestEngine(Tool{})
	engine.replacer = fileutil.Replacer{
		Rename: func(string, string) error { return errors.New("file locked") },
	}

	res := engine.EmbedXMP(context.Background(), media, testsupport.XMPPacket("x"))
	if res.OK || res.Kind != KindIO || !res.Retryable {
		t.Fatalf("expected retryable IO failure, got %+v", res)
	}
	if !bytes.Equal(testsupport.ReadBytes(t, media), original) {
		t.Fatal("original must be untouched")
	}
	assertNoScratchFiles(t, media)
}

func TestEmbedXMPPublishFailureRestoresOriginal(t *testing.T) {
	media := filepath.Join(t.TempDir(), "rec.mp4")
	original := testsupport.WriteMP4(t, media)
	engine := newTestEngine(Tool{})
	calls := 0
	engine.replacer = fileutil.Replacer{
		Rename: func(oldpath, newpath string) error {
			calls++
			if calls == 2 {
				return errors.New("sharing violation")
			}
			return os.Rename(oldpath, newpath)
		},
	}

	res := engine.EmbedXMP(context.Background(), media, testsupport.XMPPacket("x"))
	if res.OK || res.Kind != KindIO || !res.Retryable {
		t.Fatalf("expected retryable IO failure, got %+v", res)
	}
	if !bytes.Equal(testsupport.ReadBytes(t, media), original) {
		t.Fatal("original must be restored from backup")
	}
	assertNoScratchFiles(t, media)
}

func TestErrorKindRetryability(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{KindParse, true},
		{KindIO, true},
		{KindPayloadTooLarge, false},
		{KindMissingInput, false},
		{KindValidationFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			res := failure(tt.kind, "boom")
			if res.Retryable != tt.retryable {
				t.Fatalf("retryable = %v, want %v", res.Retryable, tt.retryable)
			}
		})
	}
}
