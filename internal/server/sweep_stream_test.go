package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdelgatto/packmule/internal/modules/sweep"
)

func TestSweepHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewSweepHub()

	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	assert.Equal(t, 2, hub.Subscribers())

	event := sweep.Progress{RunID: "run-1", Completed: 3, Total: 18, Scenario: "Hot SOP"}
	hub.Broadcast(event)

	require.Len(t, ch1, 1)
	require.Len(t, ch2, 1)
	assert.Equal(t, event, <-ch1)
	assert.Equal(t, event, <-ch2)
}

func TestSweepHub_CancelRemovesSubscriber(t *testing.T) {
	hub := NewSweepHub()

	ch, cancel := hub.Subscribe()
	cancel()

	assert.Equal(t, 0, hub.Subscribers())

	hub.Broadcast(sweep.Progress{RunID: "run-1"})
	assert.Len(t, ch, 0)
}

func TestSweepHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewSweepHub()

	ch, cancel := hub.Subscribe()
	defer cancel()

	// Fill the buffer without draining, then overflow it. Broadcast must
	// not block and the overflow must be dropped.
	for i := 0; i < 20; i++ {
		hub.Broadcast(sweep.Progress{RunID: "run-1", Completed: i + 1})
	}

	assert.Len(t, ch, 16)
	first := <-ch
	assert.Equal(t, 1, first.Completed)
}

func TestSweepHub_BroadcastWithoutSubscribers(t *testing.T) {
	hub := NewSweepHub()

	hub.Broadcast(sweep.Progress{RunID: "run-1"})

	assert.Equal(t, 0, hub.Subscribers())
}
