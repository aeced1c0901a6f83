package netio

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fenwickgames/realtimecore/pkg/model"
)

type fakePool struct {
	mu       sync.Mutex
	leased   int
	released int
}

func (f *fakePool) Get(workerID uint32) *model.PacketBuffer {
	f.mu.Lock()
	f.leased++
	f.mu.Unlock()
	return &model.PacketBuffer{}
}

func (f *fakePool) Release(*model.PacketBuffer) {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
}

type fakeHandler struct {
	mu      sync.Mutex
	arrived []model.Endpoint
}

func (f *fakeHandler) RunNetworkPacket(stripeID uint32, ep model.Endpoint, buf *model.PacketBuffer) {
	f.mu.Lock()
	f.arrived = append(f.arrived, ep)
	f.mu.Unlock()
}

func TestSendAndReceiveRoundTrip(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	pool := &fakePool{}
	handler := &fakeHandler{}
	server.Configure(pool, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.Start(ctx, 2)

	client, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer client.Close()

	serverEp := model.EndpointFromAddrPort(server.conn.LocalAddr().(*net.UDPAddr).AddrPort())
	err = client.Send(serverEp, []byte("hello"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.arrived) == 1
	}, time.Second, 10*time.Millisecond)
}
