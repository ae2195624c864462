// Package logging provides a minimal logging interface and adapters for vaxmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the bus, the turn loop and the tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - New, building json, text or colorized console handlers from a Config
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "console"})
//	b := bus.New(func(o *bus.Options) { o.Logger = logger })
//
// Log messages are dotted event names ("bus.instance.created") followed by
// snake_case key/value pairs.
package logging
