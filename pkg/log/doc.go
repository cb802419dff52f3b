/*
Package log provides structured logging for the frontier controller using
zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("controller")              │          │
	│  │  - WithNodeID("node-abc123")                │          │
	│  │  - WithCollectionID("42")                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "controller",               │          │
	│  │    "time": "2026-07-30T10:30:00Z",         │          │
	│  │    "message": "collection created"          │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF collection created component=controller │ │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all packages without passing
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add Raft node ID context (pkg/raftlog)
  - WithCollectionID: Add collection id context (pkg/controller)

# Usage

	import "github.com/cuemby/frontier/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("controller started")
	log.Warn("append batch rejected: stale upper")
	log.Error("failed to open persist shard")
	log.Fatal("cannot start without a durable store") // Exits process

Component Loggers:

	// Create component-specific logger
	ctrlLog := log.WithComponent("controller")
	ctrlLog.Info().Msg("registry installed collection")

	// Multiple context fields
	collLog := log.WithComponent("controller").
		With().Uint64("collection_id", 42).Logger()
	collLog.Info().Msg("append committed")
	collLog.Error().Err(err).Msg("compare-and-append rejected")

Context Logger Helpers:

	// Raft-node-specific logs
	nodeLog := log.WithNodeID("node-abc123")
	nodeLog.Info().Msg("became raft leader")

	// Collection-specific logs
	collLog := log.WithCollectionID("42")
	collLog.Info().Msg("since frontier advanced")

# Integration Points

This package integrates with:

  - pkg/controller: Logs registry, frontier, append and dispatch events
  - pkg/raftlog: Logs cluster bootstrap, leadership changes, apply errors
  - pkg/health: Logs dependency check failures
  - cmd/controllerd: Initializes the global logger at startup

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Uint64, .Err)
  - Enables log aggregation and querying
  - Parseable by log analysis tools

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces

Don't:
  - Log row payloads or other potentially sensitive data
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Uint64)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
