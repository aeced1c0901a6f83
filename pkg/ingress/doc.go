/*
Package ingress accumulates inbound datagrams across receive-path
stripes and hands each peer its buffered input exactly once per tick.

Arrival is lock-striped: every network-receive worker owns one stripe
and only ever contends on that stripe's mutex and, briefly, the shared
zone's mutex when an endpoint is first seen. PerTick runs on the tick
goroutine alone, merging every stripe into the shared zone before
fanning client_inputs calls out across the core fiber pool.

Disconnects are queued rather than applied immediately, so Arrival
never has to coordinate with the purge of an endpoint it might be
mid-write to; they are applied at the end of the next PerTick with
every stripe mutex held in a fixed order.
*/
package ingress
