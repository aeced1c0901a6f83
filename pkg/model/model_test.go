package model

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointFromAddrPort(t *testing.T) {
	ap := netip.MustParseAddrPort("203.0.113.4:51000")
	ep := EndpointFromAddrPort(ap)

	assert.Equal(t, ap.Addr(), ep.Addr)
	assert.Equal(t, uint16(51000), ep.Port)
}

func TestOpTypeIsBulkEligible(t *testing.T) {
	assert.True(t, OpInsert.IsBulkEligible())
	assert.True(t, OpUpsertMany.IsBulkEligible())
	assert.False(t, OpCallable.IsBulkEligible())
}

func TestCollectionInfoNextOpIDIsMonotonic(t *testing.T) {
	c := NewCollectionInfo()

	id0 := c.NextOpID(&TransactionInfo{OpType: OpInsert})
	id1 := c.NextOpID(&TransactionInfo{OpType: OpUpdateOne})

	assert.Equal(t, uint64(0), id0)
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), c.CurrentID.Load())
	require.Len(t, c.Ops, 2)
	assert.Equal(t, OpUpdateOne, c.Ops[id1].OpType)
}

func TestTransactionCollectionCreatesOnce(t *testing.T) {
	tx := NewTransaction("entity-1", 10)

	a := tx.Collection("positions")
	b := tx.Collection("positions")

	assert.Same(t, a, b)
	assert.Len(t, tx.Collections, 1)
}
