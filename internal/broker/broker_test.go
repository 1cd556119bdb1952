package broker

import (
	"testing"
	"time"
)

func TestMemoryBrokerPublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe(TopicJobs)

	evt := Event{Type: "job:created", Data: map[string]any{"id": 1}}
	b.Publish(TopicJobs, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["id"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(TopicJobs, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBrokerTopicsAreIsolated(t *testing.T) {
	b := NewMemoryBroker()
	jobs := b.Subscribe(TopicJobs)
	locs := b.Subscribe(TopicLocations)
	defer b.Unsubscribe(TopicJobs, jobs)
	defer b.Unsubscribe(TopicLocations, locs)

	b.Publish(TopicLocations, Event{Type: "location:update"})

	select {
	case <-jobs:
		t.Fatal("jobs subscriber must not see location events")
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case got := <-locs:
		if got.Type != "location:update" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for location event")
	}
}

func TestMemoryBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe(TopicDashboard)
	defer b.Unsubscribe(TopicDashboard, ch)

	// buffer is 8, anything past that must be dropped without blocking
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.Publish(TopicDashboard, Event{Type: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
