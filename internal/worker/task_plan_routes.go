package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/metrics"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/opt"
	"github.com/swifttiger/backend/internal/realtime"
	"github.com/swifttiger/backend/internal/service"
)

const TaskPlanRoutes = "routes:plan_day"

type PayloadPlanRoutes struct {
	// Date is the route day in 2006-01-02 form
	Date         string `json:"date"`
	Mode         string `json:"mode,omitempty"`
	TrafficAware bool   `json:"traffic_aware,omitempty"`
	// Save persists the routes and job assignments instead of only
	// computing them
	Save      bool  `json:"save"`
	CreatedBy int64 `json:"created_by"`
}

func (distributor *RedisTaskDistributor) DistributeTaskPlanRoutes(
	ctx context.Context,
	payload *PayloadPlanRoutes,
	opts ...asynq.Option,
) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return distributor.enqueue(ctx, TaskPlanRoutes, payloadBytes, opts...)
}

func (processor *RedisTaskProcessor) ProcessTaskPlanRoutes(ctx context.Context, task *asynq.Task) error {
	var payload PayloadPlanRoutes
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}
	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", payload.Date, asynq.SkipRetry)
	}
	mode := payload.Mode
	if mode == "" {
		mode = opt.ModeDistance
	}

	started := time.Now()
	plan, err := processor.planner.PlanDay(ctx, service.PlanOptions{
		Date:         date,
		Mode:         mode,
		TrafficAware: payload.TrafficAware,
	})
	if err != nil {
		return fmt.Errorf("plan day: %w", err)
	}
	metrics.RoutePlanDuration.Observe(time.Since(started).Seconds())

	for _, tp := range plan.Routes {
		outcome := "optimized"
		if tp.Result.Fallback {
			outcome = "fallback"
		}
		metrics.RoutePlans.WithLabelValues(mode, outcome).Inc()

		if !payload.Save {
			continue
		}

		route := models.Route{
			TechnicianID:    tp.Technician.ID,
			RouteDate:       date,
			Status:          models.RouteStatusPlanned,
			Mode:            mode,
			TotalDistanceKm: tp.Result.TotalDistanceKm,
			TotalMinutes:    tp.Result.TotalMinutes,
			FuelCost:        tp.Result.FuelCost,
			CreatedBy:       payload.CreatedBy,
		}
		stops := RouteStopsFromPlan(tp)
		saved, err := processor.store.SaveRoute(ctx, route, stops)
		if err != nil {
			return fmt.Errorf("save route for technician %d: %w", tp.Technician.ID, err)
		}
		for _, job := range tp.Jobs {
			if err := processor.store.AssignJob(ctx, job.ID, tp.Technician.ID); err != nil {
				return fmt.Errorf("assign job %d: %w", job.ID, err)
			}
		}
		saved.Stops = stops
		processor.events.Publish(broker.TopicJobs, realtime.RouteEvent(saved))
	}

	if payload.Save && len(plan.Routes) > 0 {
		processor.events.Publish(broker.TopicDashboard, realtime.DashboardEvent("routes_planned"))
	}

	log.Info().
		Str("date", payload.Date).
		Int("routes", len(plan.Routes)).
		Int("unassigned", len(plan.Unassigned)).
		Bool("saved", payload.Save).
		Msg("day plan built")
	return nil
}

// RouteStopsFromPlan flattens an optimized technician plan into route
// stop rows. Positions are 1-based and legs line up with the optimized
// visiting order.
func RouteStopsFromPlan(tp service.TechnicianPlan) []models.RouteStop {
	stops := make([]models.RouteStop, 0, len(tp.Jobs))
	for i, job := range tp.Jobs {
		stop := models.RouteStop{JobID: job.ID, Position: i + 1}
		if i < len(tp.Result.Legs) {
			stop.LegDistanceKm = tp.Result.Legs[i].DistanceKm
			stop.LegMinutes = tp.Result.Legs[i].Minutes
		}
		stops = append(stops, stop)
	}
	return stops
}
