// Package embed writes an XMP packet into a finalized MP4/MOV recording.
//
// The Engine tries the configured external metadata tool first and falls back
// to a built-in patcher that inserts or replaces a single top-level XMP uuid
// box. Every write goes to a temp file beside the recording, is checked for
// XMP, and is then swapped into place with a backup-then-rename protocol, so
// the recording is never left partially written.
//
// Operations return a Result rather than an error. Result.Retryable drives
// EmbedFromSidecarWithRetry, which applies exponential backoff without jitter.
package embed
