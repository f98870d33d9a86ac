package embed

import "fmt"

// ErrorKind classifies why an embed attempt failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindParse marks a malformed or truncated atom tree, often a file still
	// being written.
	KindParse
	// KindPayloadTooLarge marks a sidecar that cannot fit a 32-bit box.
	KindPayloadTooLarge
	// KindMissingInput marks an absent or empty sidecar or media file.
	KindMissingInput
	// KindValidationFailed marks a written file in which no XMP was found.
	KindValidationFailed
	// KindIO marks open, read, write, or rename failures.
	KindIO
	// KindTool marks an external tool failure. It triggers the built-in
	// patcher and is never returned from EmbedFromSidecar.
	KindTool
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindParse:
		return "parse"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindMissingInput:
		return "missing_input"
	case KindValidationFailed:
		return "validation_failed"
	case KindIO:
		return "io"
	case KindTool:
		return "tool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindParse, KindIO, KindTool:
		return true
	default:
		return false
	}
}

// Result is the outcome of one embed attempt.
type Result struct {
	OK        bool
	Err       string
	Retryable bool
	Kind      ErrorKind
}

func success() Result {
	return Result{OK: true}
}

func failure(kind ErrorKind, format string, args ...any) Result {
	return Result{
		Err:       fmt.Sprintf(format, args...),
		Retryable: kind.Retryable(),
		Kind:      kind,
	}
}

func (r Result) String() string {
	if r.OK {
		return "ok"
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Err)
}
