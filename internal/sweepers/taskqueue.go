package sweepers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// TaskQueueSweeper periodically recovers orphaned queue tasks: rows a worker
// claimed and never finished, usually after a crash or deploy.
type TaskQueueSweeper struct {
	pool        *pgxpool.Pool
	logger      *zerolog.Logger
	interval    time.Duration
	staleAfter  time.Duration
	stopChan    chan struct{}
}

// NewTaskQueueSweeper creates a new sweeper for task queue maintenance
func NewTaskQueueSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval, staleAfter time.Duration) *TaskQueueSweeper {
	return &TaskQueueSweeper{
		pool:       pool,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the periodic recovery sweep
func (s *TaskQueueSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting task queue sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Task queue sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Task queue sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			if err := s.RecoverOrphanedTasks(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to recover orphaned tasks")
			}
		}
	}
}

// Stop signals the sweeper to stop
func (s *TaskQueueSweeper) Stop() {
	close(s.stopChan)
}

// RecoverOrphanedTasks returns stale processing rows to pending when their
// retry budget allows, and fails anything already out of retries.
func (s *TaskQueueSweeper) RecoverOrphanedTasks(ctx context.Context) error {
	s.logger.Debug().Msg("Running orphaned task recovery")

	recovered, err := s.pool.Exec(ctx, `
		UPDATE task_queue
		SET status = 'pending', worker_id = NULL, retry_count = retry_count + 1,
		    scheduled_for = NOW(), updated_at = NOW()
		WHERE status = 'processing'
		  AND started_at < NOW() - $1::interval
		  AND retry_count < max_retries
	`, s.staleAfter.String())
	if err != nil {
		return fmt.Errorf("failed to recover orphaned tasks: %w", err)
	}

	failed, err := s.pool.Exec(ctx, `
		UPDATE task_queue
		SET status = 'failed', failed_at = NOW(),
		    error_message = 'orphaned: worker never completed the task', updated_at = NOW()
		WHERE status = 'processing'
		  AND started_at < NOW() - $1::interval
		  AND retry_count >= max_retries
	`, s.staleAfter.String())
	if err != nil {
		return fmt.Errorf("failed to expire orphaned tasks: %w", err)
	}

	if recovered.RowsAffected() > 0 || failed.RowsAffected() > 0 {
		s.logger.Info().
			Int64("recovered", recovered.RowsAffected()).
			Int64("failed", failed.RowsAffected()).
			Msg("Recovered orphaned tasks")
	}

	return nil
}
