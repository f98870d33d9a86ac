// Package main hosts the bettermarkers CLI entrypoint and command graph.
//
// The commands stand in for the recording host: `embed` fires the finalize
// hook for one file and `queue recover` performs the startup sweep. The
// remaining commands inspect recordings (`detect`, `atoms`), the recovery
// queue, the environment (`status`) and configuration scaffolding.
//
// Keep this package lean: behaviour lives in the internal packages and is
// only surfaced here.
package main
