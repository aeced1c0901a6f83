// Package plugin defines the core's optional extension points and the
// capability interfaces plugins implement zero or more of.
package plugin

import (
	"time"

	"github.com/fenwickgames/realtimecore/pkg/model"
)

// PreTicker is invoked once at the start of every tick, before any
// Ticker hook runs.
type PreTicker interface {
	PreTick()
}

// Ticker is invoked once per tick with the wall-clock delta since the
// previous tick.
type Ticker interface {
	Tick(diff time.Duration)
}

// PostTicker is invoked once at the end of every tick, after every
// Ticker hook has run and the heartbeat sleep has elapsed.
type PostTicker interface {
	PostTick()
}

// NetworkPacketHandler is invoked for a raw inbound datagram, in
// registration order alongside every other handler; the ingress
// pipeline is itself registered as one of them. stripeID identifies the
// receive worker that produced the datagram.
type NetworkPacketHandler interface {
	HandleNetworkPacket(stripeID uint32, ep model.Endpoint, buf *model.PacketBuffer)
}

// Capabilities records, once per registered plugin, which extension
// points it implements — computed at registration time via type
// assertion, so no type assertion runs per tick. Each Registry.Run*
// call still walks every registered plugin and skips those whose hook
// is nil.
type Capabilities struct {
	Plugin     any
	PreTick    PreTicker
	Tick       Ticker
	PostTick   PostTicker
	NetHandler NetworkPacketHandler
}

// Detect performs the static capability-detection step for p.
func Detect(p any) Capabilities {
	c := Capabilities{Plugin: p}
	c.PreTick, _ = p.(PreTicker)
	c.Tick, _ = p.(Ticker)
	c.PostTick, _ = p.(PostTicker)
	c.NetHandler, _ = p.(NetworkPacketHandler)
	return c
}

// Registry holds composed plugins in registration order and invokes
// each extension point across whichever plugins implement it.
type Registry struct {
	plugins []Capabilities
}

// Use registers p, detecting its capabilities once.
func (r *Registry) Use(p any) {
	r.plugins = append(r.plugins, Detect(p))
}

// RunPreTick invokes PreTick on every plugin that implements it, in
// registration order.
func (r *Registry) RunPreTick() {
	for _, c := range r.plugins {
		if c.PreTick != nil {
			c.PreTick.PreTick()
		}
	}
}

// RunTick invokes Tick on every plugin that implements it, in
// registration order.
func (r *Registry) RunTick(diff time.Duration) {
	for _, c := range r.plugins {
		if c.Tick != nil {
			c.Tick.Tick(diff)
		}
	}
}

// RunPostTick invokes PostTick on every plugin that implements it, in
// registration order.
func (r *Registry) RunPostTick() {
	for _, c := range r.plugins {
		if c.PostTick != nil {
			c.PostTick.PostTick()
		}
	}
}

// RunNetworkPacket invokes HandleNetworkPacket on every plugin that
// implements it, in registration order.
func (r *Registry) RunNetworkPacket(stripeID uint32, ep model.Endpoint, buf *model.PacketBuffer) {
	for _, c := range r.plugins {
		if c.NetHandler != nil {
			c.NetHandler.HandleNetworkPacket(stripeID, ep, buf)
		}
	}
}
