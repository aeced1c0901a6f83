package adminapi

import (
	"github.com/fenwickgames/realtimecore/pkg/tickloop"
	"github.com/fenwickgames/realtimecore/pkg/txn"
)

// IngressStats snapshots the ingress pipeline's per-stripe depths and
// peer bookkeeping. Server does not use it; GetIngressStats builds its
// response directly from a Source's primitive accessors.
type IngressStats struct {
	StripeDepths       []int
	KnownPeers         int
	PendingDisconnects int
}

// PoolStats snapshots one object pool's occupancy.
type PoolStats struct {
	SlabAllocs  int64
	QueueDepth  int64
	Outstanding int64
}

// Source is what a running core must expose for the admin surface to
// report on it. Every method uses types the core's collaborator
// packages already define, so pkg/core.Core satisfies this without
// importing adminapi.
type Source interface {
	InstanceID() string
	TickStats() tickloop.Stats
	StripeDepths() []int
	KnownPeers() int
	PendingDisconnects() int
	TxnStats(entityID string) ([]txn.CollectionStat, bool)
	PoolStats(name string) (slabAllocs, queueDepth, outstanding int64, ok bool)
}
