// Package model defines the shared data types of the tick-driven runtime
// core: packet buffers, endpoints, peers, the ingress accumulator state,
// and the transaction-engine bookkeeping types. Every other package in
// this module builds on these types instead of redefining them.
package model

import (
	"net/netip"
	"sync"
	"sync/atomic"
)

// PacketMax is the default capacity of a PacketBuffer payload, in bytes.
const PacketMax = 500

// PacketBuffer is a fixed-capacity datagram payload. It is owned by a
// pool.Pool[PacketBuffer] for its entire lifetime: leased to a network
// receive loop, handed to the ingress pipeline, and released back to the
// pool once the per-tick client-inputs callback for its peer returns.
type PacketBuffer struct {
	Data [PacketMax]byte
	Size uint16
}

// Bytes returns the received portion of the buffer.
func (b *PacketBuffer) Bytes() []byte {
	return b.Data[:b.Size]
}

// Reset clears the buffer for reuse. Called by the pool on release.
func (b *PacketBuffer) Reset() {
	b.Size = 0
}

// Endpoint identifies a remote peer by its UDP source address. Endpoint
// values are copied freely; Endpoint records (see pool.Pool[Endpoint] in
// callers that pool them) are heap objects reused the same way packet
// buffers are.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// EndpointFromAddrPort builds an Endpoint from a standard library address.
func EndpointFromAddrPort(ap netip.AddrPort) Endpoint {
	return Endpoint{Addr: ap.Addr(), Port: ap.Port()}
}

// PeerState is the lifecycle state of a Peer.
type PeerState int

const (
	PeerUnknown PeerState = iota
	PeerRegistered
	PeerPendingDisconnect
	PeerGone
)

// Peer is the logical remote identified by an Endpoint value. The ingress
// pipeline does not construct Peer values: it tracks a peer by its
// Endpoint in its Known sets from the first accepted packet until a
// Disconnect is processed.
type Peer struct {
	Endpoint Endpoint
	State    PeerState
}

// IngressStripe is the per-network-receive-worker ingress partition.
// Invariant: a PacketBuffer pointer appears in exactly one stripe's
// Pending list from arrival until the next tick boundary.
type IngressStripe struct {
	Mu      sync.Mutex
	Known   map[Endpoint]struct{}
	Pending map[Endpoint][]*PacketBuffer
}

// NewIngressStripe allocates an empty stripe.
func NewIngressStripe() *IngressStripe {
	return &IngressStripe{
		Known:   make(map[Endpoint]struct{}),
		Pending: make(map[Endpoint][]*PacketBuffer),
	}
}

// IngressShared is the cross-stripe accumulator merged into once per
// tick. Invariant: the union of stripe Known sets equals Known at every
// tick boundary; Known only grows through NewEndpoints.
type IngressShared struct {
	Mu           sync.Mutex
	Known        map[Endpoint]struct{}
	NewEndpoints map[Endpoint]struct{}
	Buffers      map[Endpoint][]*PacketBuffer
}

// NewIngressShared allocates an empty shared zone.
func NewIngressShared() *IngressShared {
	return &IngressShared{
		Known:        make(map[Endpoint]struct{}),
		NewEndpoints: make(map[Endpoint]struct{}),
		Buffers:      make(map[Endpoint][]*PacketBuffer),
	}
}

// DisconnectQueue holds endpoints to remove at the end of the next tick.
// Invariant: an endpoint in the queue remains present in shared and
// stripe sets until the tick that processes it runs.
type DisconnectQueue struct {
	Mu    sync.Mutex
	Items []Endpoint
}

// OpType enumerates the kinds of operation a TransactionInfo can carry.
type OpType int

const (
	OpInsert OpType = iota
	OpUpdateOne
	OpUpdateMany
	OpUpsertOne
	OpUpsertMany
	OpDeleteOne
	OpDeleteMany
	OpCallable
)

// IsBulkEligible reports whether op participates in bulk-write batching.
// Callable ops never do; every other OpType maps onto a mongo bulk write
// model.
func (t OpType) IsBulkEligible() bool {
	return t != OpCallable
}

// Dependency names an op in another entity's transaction that must be
// Done before the op carrying this Dependency may become Pending.
type Dependency struct {
	OwnerEntityID string
	OpID          uint64
}

// Callable is an application-supplied operation executed with the raw
// collection handle on the database fiber pool, instead of being folded
// into a bulk write.
type Callable func(collection any) error

// TransactionInfo is one recorded operation inside a CollectionInfo.
type TransactionInfo struct {
	Dependency *Dependency
	OpType     OpType
	Filter     any
	Update     any
	Callable   Callable
	Pending    bool
	Done       bool
}

// CollectionInfo is the per-(entity, collection) op queue.
// Invariant: for every id in [FirstID, CurrentID) there exists an entry
// in Ops; outside that range, none exists.
type CollectionInfo struct {
	FirstID   uint64
	CurrentID atomic.Uint64
	Ops       map[uint64]*TransactionInfo
}

// NewCollectionInfo allocates an empty collection slot.
func NewCollectionInfo() *CollectionInfo {
	return &CollectionInfo{Ops: make(map[uint64]*TransactionInfo)}
}

// NextOpID hands out the next monotonic op id and reserves the slot.
func (c *CollectionInfo) NextOpID(info *TransactionInfo) uint64 {
	id := c.CurrentID.Add(1) - 1
	c.Ops[id] = info
	return id
}

// Transaction is the per-entity ordered queue of database operations
// across every collection that entity touches.
type Transaction struct {
	Mu                  sync.Mutex
	EntityID            string
	Collections         map[string]*CollectionInfo
	ExecuteEvery        uint32
	SinceLast           uint32
	PendingCallableCount atomic.Int64
	Flagged             bool
	ScheduledForDelete  bool
}

// NewTransaction allocates a transaction for entityID with the given
// flush cadence, in the same units as the diff passed to the engine's
// tick (milliseconds when driven by core.TickEngine).
func NewTransaction(entityID string, executeEvery uint32) *Transaction {
	return &Transaction{
		EntityID:     entityID,
		Collections:  make(map[string]*CollectionInfo),
		ExecuteEvery: executeEvery,
	}
}

// Collection returns the CollectionInfo for name, creating it if absent.
// Caller must hold Mu.
func (t *Transaction) Collection(name string) *CollectionInfo {
	c, ok := t.Collections[name]
	if !ok {
		c = NewCollectionInfo()
		t.Collections[name] = c
	}
	return c
}

// Resolver looks up another entity's Transaction by id, for dependency
// barrier checks. It is supplied by the caller of Transaction's advance
// step rather than owned by Transaction, so no cycles form between
// transactions that depend on each other.
type Resolver func(entityID string) (*Transaction, bool)
