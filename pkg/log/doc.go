// Package log provides structured protocol capture for hub sessions.
//
// This package defines the Logger interface and Event types for capturing
// session-level events at multiple layers (transport, link, session).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/hublink/session.hlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Session: state transitions (StateChangeEvent)
//   - Transport: CBS authentication outcomes (AuthEvent)
//   - Link: attach, detach and fault notifications (LinkEvent)
//   - Messages sent over the device-bound link (MessageEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events. Reader iterates them
// with an optional Filter.
package log
