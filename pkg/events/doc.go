/*
Package events provides an in-memory event broker for admin-visible
runtime lifecycle events: peer connect/disconnect, transaction flush and
deletion, pool exhaustion, and slow-tick warnings.

Broker buffers events on an internal channel and fan-outs to every
subscriber's own buffered channel; a slow subscriber drops events rather
than blocking the publisher, since these events are observational, not
part of the tick-critical path.

	core.Start    -> c.Events.Start()
	core.OnClient -> broker.Publish(&events.Event{Type: events.EventPeerConnected, ...})
	subscriber    -> sub := broker.Subscribe(); read events from sub

Subscribe/Unsubscribe are safe to call concurrently with Publish.
*/
package events
