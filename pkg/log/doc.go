// Package log provides structured protocol logging for the companion link.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, handshake, session,
// token, registry). It is separate from operational logging (slog) -
// protocol capture provides a machine-readable event trace for debugging
// reconnection failures in the field.
//
// # Basic Usage
//
// Components accept a Logger; pass nil or NoopLogger to disable:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, _ := log.NewFileLogger("/var/log/carlink/link.clog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with .clog extension.
package log
