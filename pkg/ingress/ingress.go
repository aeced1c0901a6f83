// Package ingress implements the lock-striped accumulator of inbound
// datagrams: one stripe per network-receive worker, merged into a
// shared per-peer buffer list once per tick.
package ingress

import (
	"strconv"

	"github.com/fenwickgames/realtimecore/pkg/fiberpool"
	"github.com/fenwickgames/realtimecore/pkg/log"
	"github.com/fenwickgames/realtimecore/pkg/metrics"
	"github.com/fenwickgames/realtimecore/pkg/model"
)

// BufferPool is the subset of pool.Pool[model.PacketBuffer] the ingress
// pipeline needs to release buffers back once a tick's client_inputs
// callback returns.
type BufferPool interface {
	Release(*model.PacketBuffer)
}

// Pipeline owns the STRIPES stripes plus the shared accumulator and the
// disconnect queue. Only the tick goroutine calls PerTick; Arrival is
// called concurrently from every network-receive worker.
type Pipeline struct {
	stripes    []*model.IngressStripe
	shared     *model.IngressShared
	disconnect model.DisconnectQueue
	buffers    BufferPool
}

// New allocates a Pipeline with the given number of stripes, one per
// network-receive worker.
func New(stripeCount int, buffers BufferPool) *Pipeline {
	p := &Pipeline{
		shared:  model.NewIngressShared(),
		buffers: buffers,
	}
	p.stripes = make([]*model.IngressStripe, stripeCount)
	for i := range p.stripes {
		p.stripes[i] = model.NewIngressStripe()
	}
	return p
}

// Arrival implements the on-arrival algorithm: record the datagram in
// stripeID's pending list, registering the endpoint with the shared
// zone on first sight. stripeID is the index of the receive worker
// that accepted the datagram; buf is a pooled PacketBuffer already
// populated with its payload and size.
func (p *Pipeline) Arrival(stripeID uint32, ep model.Endpoint, buf *model.PacketBuffer) {
	stripe := p.stripes[stripeID]

	stripe.Mu.Lock()
	if _, known := stripe.Known[ep]; !known {
		p.shared.Mu.Lock()
		if _, sharedKnown := p.shared.Known[ep]; !sharedKnown {
			p.shared.Known[ep] = struct{}{}
			p.shared.NewEndpoints[ep] = struct{}{}
		}
		p.shared.Mu.Unlock()

		stripe.Known[ep] = struct{}{}
	}
	stripe.Pending[ep] = append(stripe.Pending[ep], buf)
	stripe.Mu.Unlock()

	metrics.IngressDatagramsTotal.Inc()
}

// HandleNetworkPacket implements plugin.NetworkPacketHandler, so the
// pipeline itself registers as one of the registry's handlers instead
// of the network socket holding a direct reference to it.
func (p *Pipeline) HandleNetworkPacket(stripeID uint32, ep model.Endpoint, buf *model.PacketBuffer) {
	p.Arrival(stripeID, ep, buf)
}

// NewClientFunc is invoked once per newly-seen endpoint, strictly
// before any ClientInputsFunc call for that endpoint.
type NewClientFunc func(ep model.Endpoint)

// ClientInputsFunc delivers one tick's worth of buffers for a peer. The
// pipeline releases every buffer back to the pool once this returns.
type ClientInputsFunc func(ep model.Endpoint, buffers []*model.PacketBuffer)

// DisconnectedFunc is invoked once a disconnecting endpoint has been
// fully purged from shared and stripe state.
type DisconnectedFunc func(ep model.Endpoint)

// PerTick implements the per-tick algorithm: drain newly seen
// endpoints, merge every stripe's pending buffers into shared, fan
// client_inputs out across the core fiber pool, then process the
// disconnect queue. counter is reused across ticks by the caller.
func (p *Pipeline) PerTick(fanOut *fiberpool.Pool, counter *fiberpool.Counter, newClient NewClientFunc, clientInputs ClientInputsFunc, disconnected DisconnectedFunc) {
	p.drainNewEndpoints(newClient)
	p.mergeStripes()
	p.dispatchClientInputs(fanOut, counter, clientInputs)
	p.processDisconnects(disconnected)
}

func (p *Pipeline) drainNewEndpoints(newClient NewClientFunc) {
	p.shared.Mu.Lock()
	fresh := make([]model.Endpoint, 0, len(p.shared.NewEndpoints))
	for ep := range p.shared.NewEndpoints {
		fresh = append(fresh, ep)
		if _, ok := p.shared.Buffers[ep]; !ok {
			p.shared.Buffers[ep] = nil
		}
	}
	p.shared.NewEndpoints = make(map[model.Endpoint]struct{})
	p.shared.Mu.Unlock()

	for _, ep := range fresh {
		if newClient != nil {
			newClient(ep)
		}
	}
}

func (p *Pipeline) mergeStripes() {
	for i, stripe := range p.stripes {
		stripe.Mu.Lock()
		if len(stripe.Pending) == 0 {
			stripe.Mu.Unlock()
			continue
		}
		leftover := make(map[model.Endpoint][]*model.PacketBuffer)
		leftoverDatagrams := 0
		p.shared.Mu.Lock()
		for ep, bufs := range stripe.Pending {
			if _, ok := p.shared.Buffers[ep]; ok {
				p.shared.Buffers[ep] = append(p.shared.Buffers[ep], bufs...)
				continue
			}
			// An endpoint not yet present in shared.Buffers lost the race
			// with drainNewEndpoints; its buffers stay pending and merge on
			// the next tick once the drain catches up.
			leftover[ep] = bufs
			leftoverDatagrams += len(bufs)
		}
		p.shared.Mu.Unlock()
		stripe.Pending = leftover
		metrics.IngressStripeDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(leftoverDatagrams))
		stripe.Mu.Unlock()
	}
}

func (p *Pipeline) dispatchClientInputs(fanOut *fiberpool.Pool, counter *fiberpool.Counter, clientInputs ClientInputsFunc) {
	p.shared.Mu.Lock()
	ready := make(map[model.Endpoint][]*model.PacketBuffer, len(p.shared.Buffers))
	for ep, bufs := range p.shared.Buffers {
		ready[ep] = bufs
	}
	p.shared.Mu.Unlock()

	metrics.IngressKnownPeers.Set(float64(len(ready)))

	if len(ready) == 0 {
		return
	}
	counter.Reset(int64(len(ready)))
	for ep, bufs := range ready {
		ep, bufs := ep, bufs
		fanOut.PushCounter(func() {
			clientInputs(ep, bufs)
			for _, b := range bufs {
				p.buffers.Release(b)
			}
			p.shared.Mu.Lock()
			p.shared.Buffers[ep] = p.shared.Buffers[ep][:0]
			p.shared.Mu.Unlock()
		}, counter)
	}
	counter.Wait()
}

func (p *Pipeline) processDisconnects(disconnected DisconnectedFunc) {
	p.disconnect.Mu.Lock()
	pending := p.disconnect.Items
	p.disconnect.Items = nil
	p.disconnect.Mu.Unlock()

	if len(pending) == 0 {
		return
	}

	// This is the only place more than one stripe mutex is held; stripes
	// are always locked in ascending index order.
	for _, s := range p.stripes {
		s.Mu.Lock()
	}
	p.shared.Mu.Lock()
	for _, ep := range pending {
		delete(p.shared.Buffers, ep)
		delete(p.shared.Known, ep)
		for _, s := range p.stripes {
			delete(s.Known, ep)
			delete(s.Pending, ep)
		}
	}
	p.shared.Mu.Unlock()
	for i := len(p.stripes) - 1; i >= 0; i-- {
		p.stripes[i].Mu.Unlock()
	}

	metrics.IngressDisconnectsTotal.Add(float64(len(pending)))
	for _, ep := range pending {
		if disconnected != nil {
			disconnected(ep)
		}
		log.WithPeer(ep.Addr.String()).Debug().Msg("peer disconnected")
	}
}

// Disconnect queues ep for removal at the end of the next tick's
// disconnect-processing step.
func (p *Pipeline) Disconnect(ep model.Endpoint) {
	p.disconnect.Mu.Lock()
	p.disconnect.Items = append(p.disconnect.Items, ep)
	p.disconnect.Mu.Unlock()
}

// StripeDepths returns the number of distinct peers with pending
// buffers in each stripe, indexed by stripe id.
func (p *Pipeline) StripeDepths() []int {
	depths := make([]int, len(p.stripes))
	for i, s := range p.stripes {
		s.Mu.Lock()
		depths[i] = len(s.Pending)
		s.Mu.Unlock()
	}
	return depths
}

// KnownPeers returns the number of endpoints currently registered in
// the shared zone.
func (p *Pipeline) KnownPeers() int {
	p.shared.Mu.Lock()
	defer p.shared.Mu.Unlock()
	return len(p.shared.Known)
}

// PendingDisconnects returns the number of endpoints queued for
// removal at the next tick's disconnect-processing step.
func (p *Pipeline) PendingDisconnects() int {
	p.disconnect.Mu.Lock()
	defer p.disconnect.Mu.Unlock()
	return len(p.disconnect.Items)
}
