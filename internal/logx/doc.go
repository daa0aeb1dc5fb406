// Package logx provides structured logging for gavel on top of zerolog.
//
// All log output goes to stderr: stdout is reserved for review reports so
// that JSON output stays pipeable. The CLI installs a configured default
// logger via [SetDefault] before running; subsystems log through the
// package-level functions.
package logx
