// Package logs reads the bettermarkers log file for the CLI.
//
// Last returns the trailing lines of the file; Follow polls for appended
// lines until its context ends. Both accept a Filter so callers can narrow
// output to one correlation id or recording.
package logs
