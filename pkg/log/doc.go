/*
Package log provides structured logging for realtimecore using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and helper
functions for the hot-path call sites (ingress, tick loop, transaction
engine) that only want a one-line call, not a builder chain.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog instance, set via log.Init()     │          │
	│  │  - safe for concurrent use across goroutines │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component / Scope Loggers           │          │
	│  │  - WithComponent("tickloop")                │          │
	│  │  - WithPeer("203.0.113.4:51000")            │          │
	│  │  - WithStripe(3)                            │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("ingress")
	logger.Debug().Str("peer", ep.String()).Msg("datagram accepted")

Fatal conditions (pool exhaustion, a missing transaction entry between
first_id and current_id) go through log.Fatal or log.FatalField, which
log the message at error severity and then call FatalHook. FatalHook
defaults to os.Exit(1); a test can replace it to observe a fatal
condition without ending the test binary.
*/
package log
