package ingress

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwickgames/realtimecore/pkg/fiberpool"
	"github.com/fenwickgames/realtimecore/pkg/model"
)

type fakeBufferPool struct {
	mu       sync.Mutex
	released []*model.PacketBuffer
}

func (f *fakeBufferPool) Release(b *model.PacketBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, b)
}

func endpoint(port uint16) model.Endpoint {
	return model.Endpoint{Addr: netip.MustParseAddr("127.0.0.1"), Port: port}
}

func bufWithByte(b byte) *model.PacketBuffer {
	buf := &model.PacketBuffer{Size: 1}
	buf.Data[0] = b
	return buf
}

func newTestPool() *fiberpool.Pool {
	p := fiberpool.New("test", 16)
	p.Start(2, true)
	return p
}

// S1: a single peer sending one datagram is echoed exactly that
// datagram's contents on the next tick.
func TestSinglePeerEcho(t *testing.T) {
	bufs := &fakeBufferPool{}
	p := New(2, bufs)
	pool := newTestPool()
	defer pool.End()
	counter := fiberpool.NewCounter()

	ep := endpoint(1)
	p.Arrival(0, ep, bufWithByte(42))

	var gotEP model.Endpoint
	var gotPayload byte
	p.PerTick(pool, counter, nil, func(e model.Endpoint, got []*model.PacketBuffer) {
		gotEP = e
		require.Len(t, got, 1)
		gotPayload = got[0].Bytes()[0]
	}, nil)

	assert.Equal(t, ep, gotEP)
	assert.Equal(t, byte(42), gotPayload)
	assert.Len(t, bufs.released, 1)
}

// S2: the same peer sends datagrams through two different stripes
// before a tick boundary; both must be delivered, and the caller sees
// no duplication or drop.
func TestTwoStripesSamePeerMerge(t *testing.T) {
	bufs := &fakeBufferPool{}
	p := New(2, bufs)
	pool := newTestPool()
	defer pool.End()
	counter := fiberpool.NewCounter()

	ep := endpoint(1)
	p.Arrival(0, ep, bufWithByte(1))
	p.Arrival(1, ep, bufWithByte(2))

	var got []*model.PacketBuffer
	p.PerTick(pool, counter, nil, func(e model.Endpoint, bufs []*model.PacketBuffer) {
		got = bufs
	}, nil)

	require.Len(t, got, 2)
	assert.Len(t, bufs.released, 2)
}

// HandleNetworkPacket is how a plugin.Registry drives the pipeline, so
// it must behave exactly like calling Arrival directly.
func TestHandleNetworkPacketDelegatesToArrival(t *testing.T) {
	bufs := &fakeBufferPool{}
	p := New(2, bufs)
	pool := newTestPool()
	defer pool.End()
	counter := fiberpool.NewCounter()

	ep := endpoint(1)
	p.HandleNetworkPacket(0, ep, bufWithByte(9))

	var gotPayload byte
	p.PerTick(pool, counter, nil, func(e model.Endpoint, got []*model.PacketBuffer) {
		gotPayload = got[0].Bytes()[0]
	}, nil)

	assert.Equal(t, byte(9), gotPayload)
}

// S3: a disconnect queued mid-tick for an endpoint that also has
// pending buffers must not be applied until the following tick's
// disconnect-processing step, after that tick's client_inputs already
// ran for it.
func TestDisconnectRaceAppliesNextTick(t *testing.T) {
	bufs := &fakeBufferPool{}
	p := New(1, bufs)
	pool := newTestPool()
	defer pool.End()
	counter := fiberpool.NewCounter()

	ep := endpoint(1)
	p.Arrival(0, ep, bufWithByte(7))
	p.Disconnect(ep)

	var delivered bool
	var disconnectedCalled bool
	p.PerTick(pool, counter, nil, func(e model.Endpoint, got []*model.PacketBuffer) {
		delivered = true
	}, func(e model.Endpoint) {
		disconnectedCalled = true
	})

	assert.True(t, delivered, "buffered input for a peer must be delivered before its disconnect is applied")
	assert.True(t, disconnectedCalled)

	p.shared.Mu.Lock()
	_, stillKnown := p.shared.Known[ep]
	p.shared.Mu.Unlock()
	assert.False(t, stillKnown, "endpoint must be purged from the shared zone once disconnect is processed")
}

func TestNewClientCalledBeforeFirstInputs(t *testing.T) {
	bufs := &fakeBufferPool{}
	p := New(1, bufs)
	pool := newTestPool()
	defer pool.End()
	counter := fiberpool.NewCounter()

	ep := endpoint(5)
	p.Arrival(0, ep, bufWithByte(1))

	var newClientCalled, inputsCalled bool
	p.PerTick(pool, counter, func(e model.Endpoint) {
		newClientCalled = true
		assert.False(t, inputsCalled, "new_client must run before client_inputs for the same endpoint")
	}, func(e model.Endpoint, got []*model.PacketBuffer) {
		inputsCalled = true
	}, nil)

	assert.True(t, newClientCalled)
	assert.True(t, inputsCalled)
}
