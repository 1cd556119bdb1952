package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/geocode"
	"github.com/swifttiger/backend/internal/service"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

type TaskProcessor interface {
	Start() error
	Shutdown()
	ProcessTaskGeocodeCustomer(ctx context.Context, task *asynq.Task) error
	ProcessTaskGeocodeBackfill(ctx context.Context, task *asynq.Task) error
	ProcessTaskPlanRoutes(ctx context.Context, task *asynq.Task) error
}

type RedisTaskProcessor struct {
	server      *asynq.Server
	store       *db.Store
	geocoder    geocode.Geocoder
	planner     *service.PlannerService
	events      broker.EventBroker
	distributor TaskDistributor
}

func NewRedisTaskProcessor(
	redisOpt asynq.RedisClientOpt,
	store *db.Store,
	geocoder geocode.Geocoder,
	planner *service.PlannerService,
	events broker.EventBroker,
	distributor TaskDistributor,
) TaskProcessor {
	logger := NewLogger()
	redis.SetLogger(logger)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).
					Bytes("payload", task.Payload()).Msg("process task failed")
			}),
			Logger:          logger,
			ShutdownTimeout: 10 * time.Second,
		},
	)

	return &RedisTaskProcessor{
		server:      server,
		store:       store,
		geocoder:    geocoder,
		planner:     planner,
		events:      events,
		distributor: distributor,
	}
}

// NewTestTaskProcessor builds a processor without a redis connection.
func NewTestTaskProcessor(
	store *db.Store,
	geocoder geocode.Geocoder,
	planner *service.PlannerService,
	events broker.EventBroker,
) *RedisTaskProcessor {
	return &RedisTaskProcessor{
		store:    store,
		geocoder: geocoder,
		planner:  planner,
		events:   events,
	}
}

func (processor *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskGeocodeCustomer, processor.ProcessTaskGeocodeCustomer)
	mux.HandleFunc(TaskGeocodeBackfill, processor.ProcessTaskGeocodeBackfill)
	mux.HandleFunc(TaskPlanRoutes, processor.ProcessTaskPlanRoutes)

	return processor.server.Start(mux)
}

func (processor *RedisTaskProcessor) Shutdown() {
	processor.server.Shutdown()
}
