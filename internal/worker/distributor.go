package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// TaskDistributor enqueues background work for the task processor.
type TaskDistributor interface {
	// DistributeTaskGeocodeCustomer resolves one customer address to coordinates.
	DistributeTaskGeocodeCustomer(
		ctx context.Context,
		payload *PayloadGeocodeCustomer,
		opts ...asynq.Option,
	) error

	// DistributeTaskGeocodeBackfill fans out geocode tasks for customers
	// that still have no coordinates.
	DistributeTaskGeocodeBackfill(
		ctx context.Context,
		payload *PayloadGeocodeBackfill,
		opts ...asynq.Option,
	) error

	// DistributeTaskPlanRoutes builds technician routes for one day.
	DistributeTaskPlanRoutes(
		ctx context.Context,
		payload *PayloadPlanRoutes,
		opts ...asynq.Option,
	) error

	Close() error
}

type RedisTaskDistributor struct {
	client *asynq.Client
}

func NewRedisTaskDistributor(redisOpt asynq.RedisClientOpt) TaskDistributor {
	client := asynq.NewClient(redisOpt)
	return &RedisTaskDistributor{
		client: client,
	}
}

func (distributor *RedisTaskDistributor) enqueue(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) error {
	task := asynq.NewTask(taskType, payload, opts...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	log.Info().Str("type", task.Type()).Str("queue", info.Queue).Msg("enqueued task")
	return nil
}

func (distributor *RedisTaskDistributor) Close() error {
	return distributor.client.Close()
}
