/*
Package tickloop drives the fixed-cadence tick fiber: EMA-smoothed
drift compensation keeps the mean inter-tick interval close to the
configured heartbeat even when a tick runs over budget, by subtracting
the smoothed overrun from the next sleep instead of sleeping a fixed
duration every time.

Start and Stop implement the not_started -> starting_network ->
starting_pools -> running -> stopping -> joined state machine: Stop
closes a channel the running tick fiber selects on and blocks until
that fiber signals its own exit over a second channel, a two-party
barrier that matters when the core pool is configured not to join its
workers on End.
*/
package tickloop
