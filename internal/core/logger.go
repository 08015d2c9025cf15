// Package core defines the interfaces and plain domain types shared across
// the pipeline: the quoting/diff/emit stages and the orchestrator that wires
// them to the exchange.
package core

// Logger is the structured logging interface the rest of the codebase
// depends on. pkg/logging provides the zap-backed implementation; tests use
// a recording fake.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}
