// Package netio runs the independent UDP receive loops that feed the
// ingress pipeline, and the outbound send path shared by every plugin.
package netio

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/fenwickgames/realtimecore/pkg/log"
	"github.com/fenwickgames/realtimecore/pkg/metrics"
	"github.com/fenwickgames/realtimecore/pkg/model"
)

// BufferPool is the per-worker-keyed lease/release contract netio needs
// from pool.Pool[model.PacketBuffer].
type BufferPool interface {
	Get(workerID uint32) *model.PacketBuffer
	Release(*model.PacketBuffer)
}

// NetworkHandler is the subset of plugin.Registry a receive loop feeds
// every arriving datagram through, so every registered
// plugin.NetworkPacketHandler sees it — not just the ingress pipeline.
type NetworkHandler interface {
	RunNetworkPacket(stripeID uint32, ep model.Endpoint, buf *model.PacketBuffer)
}

// Socket runs NNET independent receive loops over one shared UDP
// socket's file descriptor set — in practice NNET distinct *net.UDPConn
// values bound with SO_REUSEPORT semantics are out of scope for the
// standard library, so this implementation runs NNET goroutines reading
// concurrently off a single *net.UDPConn instead, which the UDP driver
// safely allows.
type Socket struct {
	conn    *net.UDPConn
	buffers BufferPool
	handler NetworkHandler

	wg sync.WaitGroup
}

// Listen opens a UDP socket on addr.
func Listen(addr string) (*Socket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Socket{conn: conn}, nil
}

// Configure attaches the buffer pool and plugin registry a running
// socket feeds every arriving datagram through. Must be called before
// Start.
func (s *Socket) Configure(buffers BufferPool, handler NetworkHandler) {
	s.buffers = buffers
	s.handler = handler
}

// Start launches nnet receive goroutines, each tagged with its own
// index as its stripe id.
func (s *Socket) Start(ctx context.Context, nnet int) {
	for i := 0; i < nnet; i++ {
		s.wg.Add(1)
		go s.receiveLoop(ctx, uint32(i))
	}
}

func (s *Socket) receiveLoop(ctx context.Context, stripeID uint32) {
	defer s.wg.Done()
	logger := log.WithStripe(stripeID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		buf := s.buffers.Get(stripeID)
		n, addr, err := s.conn.ReadFromUDPAddrPort(buf.Data[:])
		if err != nil {
			s.buffers.Release(buf)
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn().Err(err).Msg("udp read failed")
			metrics.DBErrorsTotal.WithLabelValues("udp_read").Inc()
			continue
		}
		buf.Size = uint16(n)
		ep := model.EndpointFromAddrPort(addr)
		s.handler.RunNetworkPacket(stripeID, ep, buf)
	}
}

// Send writes a datagram to ep. Safe to call concurrently from any
// goroutine; *net.UDPConn write methods are goroutine-safe.
func (s *Socket) Send(ep model.Endpoint, payload []byte) error {
	addr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(ep.Addr, ep.Port))
	_, err := s.conn.WriteToUDP(payload, addr)
	return err
}

// LocalAddr returns the address the socket is bound to.
func (s *Socket) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Close closes the underlying socket, which unblocks every receive
// loop's ReadFromUDPAddrPort call with net.ErrClosed, and waits for them
// to exit.
func (s *Socket) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}
