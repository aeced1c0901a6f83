package adminapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fenwickgames/realtimecore/pkg/tickloop"
	"github.com/fenwickgames/realtimecore/pkg/txn"
)

type fakeSource struct {
	instanceID  string
	tick        tickloop.Stats
	depths      []int
	knownPeers  int
	disconnects int
	txnStats    map[string][]txn.CollectionStat
	pools       map[string][3]int64
}

func (f *fakeSource) InstanceID() string        { return f.instanceID }
func (f *fakeSource) TickStats() tickloop.Stats { return f.tick }
func (f *fakeSource) StripeDepths() []int       { return f.depths }
func (f *fakeSource) KnownPeers() int           { return f.knownPeers }
func (f *fakeSource) PendingDisconnects() int   { return f.disconnects }

func (f *fakeSource) TxnStats(entityID string) ([]txn.CollectionStat, bool) {
	s, ok := f.txnStats[entityID]
	return s, ok
}

func (f *fakeSource) PoolStats(name string) (slabAllocs, queueDepth, outstanding int64, ok bool) {
	v, ok := f.pools[name]
	if !ok {
		return 0, 0, 0, false
	}
	return v[0], v[1], v[2], true
}

func TestGetTickStats(t *testing.T) {
	src := &fakeSource{instanceID: "node-7", tick: tickloop.Stats{MeanIntervalMs: 50.2, LastTickDurationMs: 1.5, TickCount: 42}}
	s := NewServer(src)

	resp, err := s.GetTickStats(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "node-7", resp.Fields["instance_id"].GetStringValue())
	assert.InDelta(t, 50.2, resp.Fields["mean_interval_ms"].GetNumberValue(), 0.001)
	assert.InDelta(t, 1.5, resp.Fields["last_tick_duration_ms"].GetNumberValue(), 0.001)
	assert.Equal(t, float64(42), resp.Fields["tick_count"].GetNumberValue())
}

func TestGetIngressStats(t *testing.T) {
	src := &fakeSource{depths: []int{3, 0, 7}, knownPeers: 10, disconnects: 2}
	s := NewServer(src)

	resp, err := s.GetIngressStats(context.Background(), nil)
	require.NoError(t, err)

	depths := resp.Fields["stripe_depths"].GetListValue().Values
	require.Len(t, depths, 3)
	assert.Equal(t, float64(7), depths[2].GetNumberValue())
	assert.Equal(t, float64(10), resp.Fields["known_peers"].GetNumberValue())
	assert.Equal(t, float64(2), resp.Fields["pending_disconnects"].GetNumberValue())
}

func TestGetTransactionStatsFound(t *testing.T) {
	src := &fakeSource{txnStats: map[string][]txn.CollectionStat{
		"entity-1": {{Name: "positions", FirstID: 4, CurrentID: 9, PendingCallables: 1}},
	}}
	s := NewServer(src)

	req, _ := structRequest(map[string]any{"entity_id": "entity-1"})
	resp, err := s.GetTransactionStats(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Fields["found"].GetBoolValue())
	cols := resp.Fields["collections"].GetListValue().Values
	require.Len(t, cols, 1)
	assert.Equal(t, "positions", cols[0].GetStructValue().Fields["name"].GetStringValue())
}

func TestGetTransactionStatsNotFound(t *testing.T) {
	src := &fakeSource{txnStats: map[string][]txn.CollectionStat{}}
	s := NewServer(src)

	req, _ := structRequest(map[string]any{"entity_id": "missing"})
	resp, err := s.GetTransactionStats(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Fields["found"].GetBoolValue())
}

func TestGetPoolStats(t *testing.T) {
	src := &fakeSource{pools: map[string][3]int64{"packet_buffer": {12, 3, 9}}}
	s := NewServer(src)

	req, _ := structRequest(map[string]any{"name": "packet_buffer"})
	resp, err := s.GetPoolStats(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Fields["found"].GetBoolValue())
	assert.Equal(t, float64(12), resp.Fields["slab_allocs"].GetNumberValue())
	assert.Equal(t, float64(3), resp.Fields["queue_depth"].GetNumberValue())
	assert.Equal(t, float64(9), resp.Fields["outstanding"].GetNumberValue())
}

func TestGetPoolStatsNotFound(t *testing.T) {
	src := &fakeSource{pools: map[string][3]int64{}}
	s := NewServer(src)

	req, _ := structRequest(map[string]any{"name": "nope"})
	resp, err := s.GetPoolStats(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Fields["found"].GetBoolValue())
}

func structRequest(fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}
