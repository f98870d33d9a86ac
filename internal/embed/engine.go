package embed

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"time"

	"bettermarkers/internal/atom"
	"bettermarkers/internal/config"
	"bettermarkers/internal/fileutil"
	"bettermarkers/internal/logging"
)

const (
	// TempSuffix names the scratch copy written beside the recording.
	TempSuffix = ".better-markers.tmp"
	// BackupSuffix names the original while the scratch copy is swapped in.
	BackupSuffix = ".better-markers.bak"
)

// Tool configures the external metadata editor.
type Tool struct {
	Command       string
	Enabled       bool
	StartTimeout  time.Duration
	FinishTimeout time.Duration
}

// Engine embeds XMP packets into MP4/MOV files. It is safe for concurrent use
// on distinct media paths; callers serialize attempts on the same path.
type Engine struct {
	tool     Tool
	logger   *slog.Logger
	replacer fileutil.Replacer
	sleep    func(time.Duration)
}

// New constructs an Engine. A nil logger discards output.
func New(tool Tool, logger *slog.Logger) *Engine {
	return &Engine{
		tool:     tool,
		logger:   logging.NewComponentLogger(logger, "embed"),
		replacer: fileutil.NewReplacer(),
		sleep:    time.Sleep,
	}
}

// NewFromConfig constructs an Engine from the [embed] config section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Engine {
	return New(Tool{
		Command:       cfg.Embed.Tool,
		Enabled:       cfg.Embed.ToolEnabled,
		StartTimeout:  cfg.Embed.ToolStartTimeout(),
		FinishTimeout: cfg.Embed.ToolFinishTimeout(),
	}, logger)
}

// EmbedXMP writes payload into mediaPath as a top-level XMP uuid box using the
// built-in patcher. An existing XMP uuid box is replaced in place when that
// leaves mdat where it is; otherwise the box is appended. A recording left
// under its backup name by an interrupted embed is restored first.
func (e *Engine) EmbedXMP(ctx context.Context, mediaPath string, payload []byte) Result {
	logger := logging.WithContext(ctx, e.logger)
	temp := mediaPath + TempSuffix
	backup := mediaPath + BackupSuffix

	if res := e.restoreInterrupted(logger, mediaPath); !res.OK {
		return res
	}
	if res := writePatched(mediaPath, temp, payload); !res.OK {
		_ = os.Remove(temp)
		return res
	}

	found, err := atom.HasXMP(temp)
	if err != nil || !found {
		_ = os.Remove(temp)
		if err != nil {
			return failure(KindValidationFailed, "embedded file validation failed: %v", err)
		}
		return failure(KindValidationFailed, "embedded file validation failed (missing XMP metadata atom)")
	}

	if err := e.replacer.Replace(mediaPath, temp, backup); err != nil {
		return failure(KindIO, "%v", err)
	}

	logger.Debug("xmp uuid atom written", logging.Int("payload_bytes", len(payload)))
	return success()
}

// writePatched streams mediaPath into temp with box inserted. The source is
// closed before returning so the caller can rename over it.
func writePatched(mediaPath, temp string, payload []byte) Result {
	src, err := os.Open(mediaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure(KindMissingInput, "recording file not found: %s", mediaPath)
		}
		return failure(KindIO, "open recording file %s: %v", mediaPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return failure(KindIO, "stat recording file %s: %v", mediaPath, err)
	}
	size := info.Size()

	atoms, err := atom.ParseTopLevel(src, size)
	if err != nil {
		return failure(KindParse, "parse MP4/MOV atoms: %v", err)
	}

	box, err := atom.BuildUUID(payload)
	if err != nil {
		return failure(KindPayloadTooLarge, "XMP payload is too large for MP4 uuid atom: %v", err)
	}

	idx, err := atom.FindXMPUUID(src, atoms)
	if err != nil {
		return failure(KindIO, "read existing uuid atom: %v", err)
	}

	plan, res := planPatch(src, atoms, idx, uint64(len(box)))
	if !res.OK {
		return res
	}

	dst, err := os.OpenFile(temp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return failure(KindIO, "open temp file %s: %v", temp, err)
	}

	if err := copyPatched(dst, src, size, plan, box); err != nil {
		_ = dst.Close()
		return failure(KindIO, "write temp file %s: %v", temp, err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return failure(KindIO, "sync temp file %s: %v", temp, err)
	}
	if err := dst.Close(); err != nil {
		return failure(KindIO, "close temp file %s: %v", temp, err)
	}
	return success()
}

// patchPlan says where the new XMP box goes. With replace set the box takes
// the old one's place; otherwise it is appended, after blank (an old XMP box
// turned into free space) and openEnded (a size-0 final atom given an
// explicit size) are rewritten.
type patchPlan struct {
	replace   *atom.Atom
	blank     *atom.Atom
	openEnded *atom.Atom
}

// planPatch replaces an existing XMP box in place unless doing so would move
// mdat: chunk offsets in moov are absolute, so a resized box ahead of mdat is
// blanked instead and the new box appended.
func planPatch(src io.ReaderAt, atoms []atom.Atom, idx int, boxSize uint64) (patchPlan, Result) {
	var plan patchPlan
	if idx >= 0 {
		prior := atoms[idx]
		if prior.Size == boxSize || !mdatAfter(atoms, idx) {
			plan.replace = &prior
			return plan, success()
		}
		plan.blank = &prior
	}

	if len(atoms) > 0 {
		last := atoms[len(atoms)-1]
		declared, err := declaredSize(src, last)
		if err != nil {
			return plan, failure(KindIO, "read final atom header: %v", err)
		}
		if declared == 0 {
			if last.Size > math.MaxUint32 {
				return plan, failure(KindValidationFailed, "cannot append after open-ended %s atom larger than 4 GiB", last.Type)
			}
			plan.openEnded = &last
		}
	}
	return plan, success()
}

func mdatAfter(atoms []atom.Atom, idx int) bool {
	for _, a := range atoms[idx+1:] {
		if a.Type == atom.TypeMdat {
			return true
		}
	}
	return false
}

func copyPatched(dst io.Writer, src io.ReaderAt, size int64, plan patchPlan, box []byte) error {
	if prior := plan.replace; prior != nil {
		if err := fileutil.CopyRange(dst, src, 0, int64(prior.Offset)); err != nil {
			return err
		}
		if _, err := dst.Write(box); err != nil {
			return fmt.Errorf("write replacement XMP uuid atom: %w", err)
		}
		return fileutil.CopyRange(dst, src, int64(prior.End()), size-int64(prior.End()))
	}

	var pos int64
	if blank := plan.blank; blank != nil {
		if err := fileutil.CopyRange(dst, src, 0, int64(blank.Offset)); err != nil {
			return err
		}
		if err := writeFree(dst, blank.Size); err != nil {
			return err
		}
		pos = int64(blank.End())
	}
	if last := plan.openEnded; last != nil {
		if err := fileutil.CopyRange(dst, src, pos, int64(last.Offset)-pos); err != nil {
			return err
		}
		// The final box runs to end of file; give it an explicit size so the
		// appended box is not swallowed by it.
		var sz [4]byte
		binary.BigEndian.PutUint32(sz[:], uint32(last.Size))
		if _, err := dst.Write(sz[:]); err != nil {
			return fmt.Errorf("write final atom size: %w", err)
		}
		pos = int64(last.Offset) + 4
	}
	if err := fileutil.CopyRange(dst, src, pos, size-pos); err != nil {
		return err
	}
	if _, err := dst.Write(box); err != nil {
		return fmt.Errorf("append XMP uuid atom: %w", err)
	}
	return nil
}

// writeFree writes a zero-filled free box of exactly boxSize bytes.
func writeFree(dst io.Writer, boxSize uint64) error {
	hdr, err := atom.Header(atom.TypeFree, boxSize)
	if err != nil {
		return err
	}
	if _, err := dst.Write(hdr); err != nil {
		return fmt.Errorf("write free atom header: %w", err)
	}
	zeros := make([]byte, 32*1024)
	for left := boxSize - uint64(len(hdr)); left > 0; {
		n := min(left, uint64(len(zeros)))
		if _, err := dst.Write(zeros[:n]); err != nil {
			return fmt.Errorf("write free atom payload: %w", err)
		}
		left -= n
	}
	return nil
}

// declaredSize returns the 32-bit size field of a as stored on disk.
func declaredSize(r io.ReaderAt, a atom.Atom) (uint32, error) {
	var hdr [4]byte
	if _, err := r.ReadAt(hdr[:], int64(a.Offset)); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(hdr[:]), nil
}

// RestoreInterrupted moves <media>.better-markers.bak back to mediaPath when
// an earlier embed stopped between moving the original aside and publishing
// the patched copy. It reports whether a restore happened.
func RestoreInterrupted(mediaPath string) (bool, error) {
	return fileutil.NewReplacer().Restore(mediaPath, mediaPath+BackupSuffix)
}

func (e *Engine) restoreInterrupted(logger *slog.Logger, mediaPath string) Result {
	backup := mediaPath + BackupSuffix
	restored, err := e.replacer.Restore(mediaPath, backup)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to restore recording from embed backup", "embed_restore_failed",
			logging.String("backup", backup),
			logging.Error(err),
			logging.String(logging.FieldImpact, "recording is only available under its backup name"),
			logging.String(logging.FieldErrorHint, "rename the backup file to the recording name"),
		)
		return failure(KindIO, "%v", err)
	}
	if restored {
		logging.WarnWithContext(logger, "restored recording left by an interrupted embed", "embed_backup_restored",
			logging.String("backup", backup),
			logging.String(logging.FieldImpact, "previous embed did not complete; retrying on the original"),
		)
	}
	return success()
}
