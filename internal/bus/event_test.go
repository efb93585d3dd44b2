package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := NewEventBus()
	s1 := b.Subscribe(nil, 0)
	s2 := b.Subscribe(nil, 0)

	b.Publish("recorder.state", map[string]any{"to": "recording"})

	e1 := s1.Poll(0)
	e2 := s2.Poll(0)
	require.Len(t, e1, 1)
	require.Len(t, e2, 1)
	assert.Equal(t, "recorder.state", e1[0].Type)
	assert.Equal(t, "recording", e1[0].Payload["to"])
}

func TestSubscribeFilterOnlyDeliversMatchingTypes(t *testing.T) {
	b := NewEventBus()
	s := b.Subscribe([]string{"asset.recorded.saved"}, 0)

	b.Publish("recorder.state", nil)
	b.Publish("asset.recorded.saved", map[string]any{"id": "x"})

	got := s.Poll(0)
	require.Len(t, got, 1)
	assert.Equal(t, "asset.recorded.saved", got[0].Type)
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	b := NewEventBus()
	s := b.Subscribe(nil, 2)

	b.Publish("a", nil)
	b.Publish("b", nil)
	b.Publish("c", nil)

	got := s.Poll(0)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Type)
	assert.Equal(t, "c", got[1].Type)
}

func TestPollRespectsMaxItemsAndLeavesRemainder(t *testing.T) {
	b := NewEventBus()
	s := b.Subscribe(nil, 10)
	b.Publish("a", nil)
	b.Publish("b", nil)
	b.Publish("c", nil)

	first := s.Poll(2)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Type)
	assert.Equal(t, "b", first[1].Type)

	rest := s.Poll(0)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].Type)
}

func TestCloseStopsFurtherDelivery(t *testing.T) {
	b := NewEventBus()
	s := b.Subscribe(nil, 0)
	s.Close()

	b.Publish("a", nil)
	assert.Nil(t, s.Poll(0))
}

func TestUnsubscribeRemovesFromFanOut(t *testing.T) {
	b := NewEventBus()
	s1 := b.Subscribe(nil, 0)
	s2 := b.Subscribe(nil, 0)
	b.Unsubscribe(s1)

	b.Publish("a", nil)

	assert.Nil(t, s1.Poll(0))
	require.Len(t, s2.Poll(0), 1)
}

func TestPollEmptyQueueReturnsNil(t *testing.T) {
	b := NewEventBus()
	s := b.Subscribe(nil, 0)
	assert.Nil(t, s.Poll(5))
}
