// Package preflight provides readiness checks for the filesystem paths and
// external binaries bettermarkers depends on.
//
// The CLI "bettermarkers status" command renders these results. The plugin
// host does not gate embedding on them: a failed embed is queued for
// recovery instead.
package preflight
