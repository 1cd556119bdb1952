package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/models"
)

func newTestClient(hub *Hub, userID int64, ct ClientType) *Client {
	return NewClient(hub, nil, ClientInfo{UserID: userID, ClientType: ct}, nil)
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHubRegistersTechnician(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient(hub, 7, ClientTypeTechnician)
	hub.Register(client)

	require.Eventually(t, func() bool {
		return hub.IsTechnicianOnline(7)
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, hub.OnlineTechnicianCount())
	require.Equal(t, 0, hub.OnlineDispatcherCount())
}

func TestHubUnregisterRemovesClient(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient(hub, 7, ClientTypeTechnician)
	hub.Register(client)
	require.Eventually(t, func() bool {
		return hub.IsTechnicianOnline(7)
	}, time.Second, 10*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool {
		return !hub.IsTechnicianOnline(7)
	}, time.Second, 10*time.Millisecond)
}

func TestHubReconnectReplacesOldClient(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Shutdown()

	first := newTestClient(hub, 7, ClientTypeTechnician)
	hub.Register(first)
	require.Eventually(t, func() bool {
		return hub.IsTechnicianOnline(7)
	}, time.Second, 10*time.Millisecond)

	second := newTestClient(hub, 7, ClientTypeTechnician)
	hub.Register(second)

	// the first client is told to go away
	select {
	case <-first.done:
	case <-time.After(time.Second):
		t.Fatal("old client was not closed on reconnect")
	}

	// unregistering the stale client must not evict the new one
	hub.Unregister(first)
	time.Sleep(50 * time.Millisecond)
	require.True(t, hub.IsTechnicianOnline(7))

	hub.SendToTechnician(7, Message{Type: "test"})
	msg := recvMessage(t, second)
	require.Equal(t, "test", msg.Type)
}

func TestHubSendToTechnicianTargetsOneClient(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Shutdown()

	tech1 := newTestClient(hub, 1, ClientTypeTechnician)
	tech2 := newTestClient(hub, 2, ClientTypeTechnician)
	hub.Register(tech1)
	hub.Register(tech2)
	require.Eventually(t, func() bool {
		return hub.OnlineTechnicianCount() == 2
	}, time.Second, 10*time.Millisecond)

	hub.SendToTechnician(2, Message{Type: "job:assigned"})

	msg := recvMessage(t, tech2)
	require.Equal(t, "job:assigned", msg.Type)

	select {
	case <-tech1.send:
		t.Fatal("message leaked to the wrong technician")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubDispatcherBroadcastSkipsTechnicians(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Shutdown()

	tech := newTestClient(hub, 1, ClientTypeTechnician)
	disp := newTestClient(hub, 2, ClientTypeDispatcher)
	hub.Register(tech)
	hub.Register(disp)
	require.Eventually(t, func() bool {
		return hub.OnlineTechnicianCount() == 1 && hub.OnlineDispatcherCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastToDispatchers(Message{Type: "location:update"})

	msg := recvMessage(t, disp)
	require.Equal(t, "location:update", msg.Type)

	select {
	case <-tech.send:
		t.Fatal("dispatcher broadcast reached a technician")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubBroadcastToAllReachesEveryone(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Shutdown()

	tech := newTestClient(hub, 1, ClientTypeTechnician)
	disp := newTestClient(hub, 2, ClientTypeDispatcher)
	hub.Register(tech)
	hub.Register(disp)
	require.Eventually(t, func() bool {
		return hub.OnlineTechnicianCount() == 1 && hub.OnlineDispatcherCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastToAll(Message{Type: "dashboard:refresh"})

	require.Equal(t, "dashboard:refresh", recvMessage(t, tech).Type)
	require.Equal(t, "dashboard:refresh", recvMessage(t, disp).Type)
}

func TestBridgeRoutesJobEventsToAssignedTechnician(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Shutdown()

	b := broker.NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Bridge(ctx, b)

	assigned := newTestClient(hub, 5, ClientTypeTechnician)
	other := newTestClient(hub, 6, ClientTypeTechnician)
	disp := newTestClient(hub, 9, ClientTypeDispatcher)
	hub.Register(assigned)
	hub.Register(other)
	hub.Register(disp)
	require.Eventually(t, func() bool {
		return hub.OnlineTechnicianCount() == 2 && hub.OnlineDispatcherCount() == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	techID := int64(5)
	job := models.Job{ID: 42, Name: "Fix HVAC", Status: models.JobStatusInProgress, AssignedTo: &techID}
	b.Publish(broker.TopicJobs, JobEvent(EventJobStatus, job))

	msg := recvMessage(t, assigned)
	require.Equal(t, EventJobStatus, msg.Type)
	require.Contains(t, string(msg.Data), `"id":42`)

	require.Equal(t, EventJobStatus, recvMessage(t, disp).Type)

	select {
	case <-other.send:
		t.Fatal("job event leaked to an unassigned technician")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventTechnicianIDHandlesJSONNumbers(t *testing.T) {
	evt := broker.Event{Type: EventJobAssigned, Data: map[string]any{"technician_id": float64(12)}}
	id, ok := eventTechnicianID(evt)
	require.True(t, ok)
	require.Equal(t, int64(12), id)

	evt.Data["technician_id"] = int64(3)
	id, ok = eventTechnicianID(evt)
	require.True(t, ok)
	require.Equal(t, int64(3), id)

	_, ok = eventTechnicianID(broker.Event{Data: map[string]any{}})
	require.False(t, ok)
}

func TestLocationCacheKeepsLatestPing(t *testing.T) {
	cache := NewLocationCache()

	cache.Upsert(LatestLocation{TechnicianID: 2, Lat: 30.1, Lng: -97.7})
	cache.Upsert(LatestLocation{TechnicianID: 1, Lat: 30.2, Lng: -97.8})
	cache.Upsert(LatestLocation{TechnicianID: 2, Lat: 30.3, Lng: -97.9})

	got, ok := cache.Get(2)
	require.True(t, ok)
	require.Equal(t, 30.3, got.Lat)

	list := cache.List()
	require.Len(t, list, 2)
	require.Equal(t, int64(1), list[0].TechnicianID)
	require.Equal(t, int64(2), list[1].TechnicianID)
}

func TestLocationCacheEvictsStalePings(t *testing.T) {
	cache := NewLocationCache()
	cache.Upsert(LatestLocation{TechnicianID: 1, RecordedAt: time.Now().Add(-time.Hour)})
	cache.Upsert(LatestLocation{TechnicianID: 2, RecordedAt: time.Now()})

	require.Equal(t, 1, cache.Evict(10*time.Minute))

	_, ok := cache.Get(1)
	require.False(t, ok)
	_, ok = cache.Get(2)
	require.True(t, ok)
}
