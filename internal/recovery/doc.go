// Package recovery persists failed XMP embeds and decides what to do with
// them on the next start.
//
// Queue is a small JSON document of the form
//
//	{"jobs":[{"mediaPath":"...","attempts":2,"lastError":"...","lastAttemptUnixMs":0}]}
//
// written with a temp-file-and-rename save. Decide filters stale jobs (media
// deleted, unsupported container, sidecar gone) before a sweep spends an
// embed attempt on them.
package recovery
