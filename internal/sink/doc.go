// Package sink connects recording lifecycle events to exporters.
//
// XMPEmbedSink is the exporter that embeds the XMP sidecar into a finished
// MP4/MOV. It owns the recovery queue: a finalize that exhausts its retries
// is queued, and StartStartupRecovery sweeps the queue once per process
// start. Sweeps take a file lock beside the queue so two processes never
// sweep it at the same time.
package sink
