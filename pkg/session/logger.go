package session

import "log"

// Logger is the logging collaborator used throughout the server. Components
// take it at construction instead of assuming a particular logging runtime.
type Logger interface {
	Log(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// stdLogger writes through the standard log package.
type stdLogger struct{}

func (stdLogger) Log(format string, args ...any)   { log.Printf(format, args...) }
func (stdLogger) Warn(format string, args ...any)  { log.Printf("WARNING: "+format, args...) }
func (stdLogger) Error(format string, args ...any) { log.Printf("ERROR: "+format, args...) }

// DefaultLogger returns a Logger backed by the standard log package.
func DefaultLogger() Logger { return stdLogger{} }

// nopLogger discards everything. Used by tests and headless embedders.
type nopLogger struct{}

func (nopLogger) Log(format string, args ...any)   {}
func (nopLogger) Warn(format string, args ...any)  {}
func (nopLogger) Error(format string, args ...any) {}

// NopLogger returns a Logger that discards all output.
func NopLogger() Logger { return nopLogger{} }
