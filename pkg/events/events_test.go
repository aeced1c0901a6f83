package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventPeerConnected, Message: "203.0.113.4:51000"})

	select {
	case ev := <-sub:
		assert.Equal(t, EventPeerConnected, ev.Type)
		assert.False(t, ev.Timestamp.IsZero(), "Publish stamps a zero timestamp")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	a := b.Subscribe()
	c := b.Subscribe()
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(c)

	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventTxnFlushed})

	for _, sub := range []Subscriber{a, c} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventTxnFlushed, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish(&Event{Type: EventPoolExhausted})

	_, ok := <-sub
	assert.False(t, ok, "unsubscribe closes the subscriber channel")
}
