package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/geocode"
	"github.com/swifttiger/backend/internal/metrics"
	"github.com/swifttiger/backend/internal/realtime"
)

const (
	TaskGeocodeCustomer = "customer:geocode"
	TaskGeocodeBackfill = "customer:geocode_backfill"
)

type PayloadGeocodeCustomer struct {
	CustomerID int64 `json:"customer_id"`
	// Force re-resolves coordinates even when the customer already has them
	Force bool `json:"force,omitempty"`
}

type PayloadGeocodeBackfill struct {
	Limit int `json:"limit,omitempty"`
}

func (distributor *RedisTaskDistributor) DistributeTaskGeocodeCustomer(
	ctx context.Context,
	payload *PayloadGeocodeCustomer,
	opts ...asynq.Option,
) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return distributor.enqueue(ctx, TaskGeocodeCustomer, payloadBytes, opts...)
}

func (distributor *RedisTaskDistributor) DistributeTaskGeocodeBackfill(
	ctx context.Context,
	payload *PayloadGeocodeBackfill,
	opts ...asynq.Option,
) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return distributor.enqueue(ctx, TaskGeocodeBackfill, payloadBytes, opts...)
}

func (processor *RedisTaskProcessor) ProcessTaskGeocodeCustomer(ctx context.Context, task *asynq.Task) error {
	var payload PayloadGeocodeCustomer
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	customer, err := processor.store.GetCustomer(ctx, payload.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("customer %d not found: %w", payload.CustomerID, asynq.SkipRetry)
		}
		return fmt.Errorf("get customer: %w", err)
	}

	if !geocode.ShouldGeocode(customer, payload.Force) {
		log.Debug().Int64("customer_id", customer.ID).Msg("customer already geocoded, skipping")
		return nil
	}

	query := geocode.BuildGeocodeQuery(customer.Street, customer.City, customer.State, customer.Zip)
	if query == "" {
		metrics.GeocodeRequests.WithLabelValues("empty_address").Inc()
		return fmt.Errorf("customer %d has no address to geocode: %w", customer.ID, asynq.SkipRetry)
	}

	lat, lng, displayName, confidence, err := processor.geocoder.Geocode(ctx, query)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
			// a retry would just repeat the same miss
			return fmt.Errorf("no geocode match for %q: %w", query, asynq.SkipRetry)
		}
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("geocode %q: %w", query, err)
	}
	metrics.GeocodeRequests.WithLabelValues("ok").Inc()

	if err := processor.store.SetCustomerCoords(ctx, customer.ID, lat, lng); err != nil {
		return fmt.Errorf("store coordinates: %w", err)
	}

	log.Info().
		Int64("customer_id", customer.ID).
		Float64("lat", lat).
		Float64("lng", lng).
		Float64("confidence", confidence).
		Str("display_name", displayName).
		Msg("customer geocoded")

	processor.events.Publish(broker.TopicDashboard, realtime.DashboardEvent("customer_geocoded"))
	return nil
}

func (processor *RedisTaskProcessor) ProcessTaskGeocodeBackfill(ctx context.Context, task *asynq.Task) error {
	var payload PayloadGeocodeBackfill
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = 50
	}

	customers, err := processor.store.ListCustomersMissingCoords(ctx, limit)
	if err != nil {
		return fmt.Errorf("list customers missing coordinates: %w", err)
	}

	for _, c := range customers {
		err := processor.distributor.DistributeTaskGeocodeCustomer(
			ctx,
			&PayloadGeocodeCustomer{CustomerID: c.ID},
			asynq.Queue(QueueDefault),
			asynq.MaxRetry(3),
		)
		if err != nil {
			return fmt.Errorf("enqueue geocode for customer %d: %w", c.ID, err)
		}
	}

	log.Info().Int("customers", len(customers)).Msg("geocode backfill enqueued")
	return nil
}
