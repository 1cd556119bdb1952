package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/opt"
	"github.com/swifttiger/backend/internal/worker"
)

// Scheduler runs the recurring maintenance jobs: session cleanup,
// geocode backfill, and overnight route planning. The task jobs are
// skipped when no distributor is configured (redis disabled).
type Scheduler struct {
	cron        *cron.Cron
	store       *db.Store
	distributor worker.TaskDistributor
}

func NewScheduler(store *db.Store, distributor worker.TaskDistributor) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		store:       store,
		distributor: distributor,
	}
}

func (s *Scheduler) Start() error {
	// 02:00 purge expired refresh sessions
	if _, err := s.cron.AddFunc("0 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := s.PurgeExpiredSessions(ctx); err != nil {
			log.Error().Err(err).Msg("failed to purge expired sessions")
		}
	}); err != nil {
		return err
	}

	// 04:30 build and save routes for the coming workday
	if _, err := s.cron.AddFunc("30 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := s.PlanTodayRoutes(ctx); err != nil {
			log.Error().Err(err).Msg("failed to enqueue route planning")
		}
	}); err != nil {
		return err
	}

	// every 30 minutes pick up customers still missing coordinates
	if _, err := s.cron.AddFunc("*/30 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := s.BackfillGeocodes(ctx); err != nil {
			log.Error().Err(err).Msg("failed to enqueue geocode backfill")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Msg("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) PurgeExpiredSessions(ctx context.Context) error {
	n, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("sessions", n).Msg("expired sessions purged")
	}
	return nil
}

func (s *Scheduler) PlanTodayRoutes(ctx context.Context) error {
	if s.distributor == nil {
		log.Debug().Msg("no task distributor, skipping route planning")
		return nil
	}
	return s.distributor.DistributeTaskPlanRoutes(ctx, &worker.PayloadPlanRoutes{
		Date: time.Now().Format("2006-01-02"),
		Mode: opt.ModeDistance,
		Save: true,
	})
}

func (s *Scheduler) BackfillGeocodes(ctx context.Context) error {
	if s.distributor == nil {
		log.Debug().Msg("no task distributor, skipping geocode backfill")
		return nil
	}
	return s.distributor.DistributeTaskGeocodeBackfill(ctx, &worker.PayloadGeocodeBackfill{Limit: 25})
}
