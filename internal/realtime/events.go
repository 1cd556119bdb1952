package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/models"
)

const (
	EventJobCreated   = "job:created"
	EventJobUpdated   = "job:updated"
	EventJobStatus    = "job:status_changed"
	EventJobAssigned  = "job:assigned"
	EventJobCancelled = "job:cancelled"
	EventLocation     = "location:update"
	EventRoutePlanned = "route:planned"
	EventDashboard    = "dashboard:refresh"
)

// JobEvent builds a broker event for the jobs topic. The payload keeps
// just enough for clients to refresh the affected row.
func JobEvent(typ string, job models.Job) broker.Event {
	data := map[string]any{
		"id":            job.ID,
		"name":          job.Name,
		"status":        job.Status,
		"priority":      job.Priority,
		"customer_id":   job.CustomerID,
		"customer_name": job.CustomerName,
	}
	if job.AssignedTo != nil {
		data["technician_id"] = *job.AssignedTo
	}
	return broker.Event{Type: typ, Data: data}
}

func LocationEvent(loc models.TechnicianLocation) broker.Event {
	return broker.Event{Type: EventLocation, Data: map[string]any{
		"technician_id":   loc.TechnicianID,
		"technician_name": loc.TechnicianName,
		"lat":             loc.Latitude,
		"lng":             loc.Longitude,
		"accuracy_m":      loc.AccuracyM,
		"recorded_at":     loc.RecordedAt,
	}}
}

func RouteEvent(route models.Route) broker.Event {
	return broker.Event{Type: EventRoutePlanned, Data: map[string]any{
		"route_id":      route.ID,
		"technician_id": route.TechnicianID,
		"route_date":    route.RouteDate.Format("2006-01-02"),
		"stops":         len(route.Stops),
	}}
}

func DashboardEvent(reason string) broker.Event {
	return broker.Event{Type: EventDashboard, Data: map[string]any{"reason": reason}}
}

// Bridge pumps broker events into the hub until ctx ends. Job events
// go to dispatchers plus the assigned technician, location events to
// dispatchers only, dashboard events to everyone.
func (h *Hub) Bridge(ctx context.Context, b broker.EventBroker) {
	jobs := b.Subscribe(broker.TopicJobs)
	locations := b.Subscribe(broker.TopicLocations)
	dashboard := b.Subscribe(broker.TopicDashboard)
	defer func() {
		b.Unsubscribe(broker.TopicJobs, jobs)
		b.Unsubscribe(broker.TopicLocations, locations)
		b.Unsubscribe(broker.TopicDashboard, dashboard)
	}()

	log.Info().Msg("event bridge started")
	defer log.Info().Msg("event bridge stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-jobs:
			if !ok {
				return
			}
			msg := toMessage(evt)
			h.BroadcastToDispatchers(msg)
			if id, ok := eventTechnicianID(evt); ok {
				h.SendToTechnician(id, msg)
			}
		case evt, ok := <-locations:
			if !ok {
				return
			}
			h.BroadcastToDispatchers(toMessage(evt))
		case evt, ok := <-dashboard:
			if !ok {
				return
			}
			h.BroadcastToAll(toMessage(evt))
		}
	}
}

func toMessage(evt broker.Event) Message {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		log.Warn().Err(err).Str("type", evt.Type).Msg("dropping unencodable event")
		data = nil
	}
	return Message{Type: evt.Type, Data: data, Timestamp: time.Now().UTC()}
}

func eventTechnicianID(evt broker.Event) (int64, bool) {
	v, ok := evt.Data["technician_id"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, n > 0
	case float64:
		// events that crossed redis decode numbers as float64
		return int64(n), n > 0
	case int:
		return int64(n), n > 0
	}
	return 0, false
}
