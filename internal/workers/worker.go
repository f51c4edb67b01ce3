package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/outreachly/outreach-service/internal/taskqueue"
)

type WorkerConfig struct {
	WorkerID   string
	TaskTypes  []string
	MaxTasks   int
	NumWorkers int
	PollDelay  time.Duration
}

type Worker struct {
	queue    *taskqueue.TaskQueue
	config   WorkerConfig
	logger   zerolog.Logger
	handlers map[string]func(context.Context, []byte) error
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(queue *taskqueue.TaskQueue, config WorkerConfig, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		config:   config,
		logger:   logger.With().Str("component", "worker").Logger(),
		handlers: make(map[string]func(context.Context, []byte) error),
		stopChan: make(chan struct{}),
	}
}

func (w *Worker) RegisterHandler(taskType taskqueue.TaskType, handler func(context.Context, []byte) error) {
	w.handlers[string(taskType)] = handler
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().
		Str("worker_id", w.config.WorkerID).
		Strs("task_types", w.config.TaskTypes).
		Msg("Starting worker")

	for i := 0; i < w.config.NumWorkers; i++ {
		go w.workerLoop(ctx, i)
	}
}

func (w *Worker) Stop() {
	close(w.stopChan)
	w.logger.Info().
		Str("worker_id", w.config.WorkerID).
		Msg("Worker stopping, waiting for in-flight tasks")
	w.wg.Wait()
	w.logger.Info().
		Str("worker_id", w.config.WorkerID).
		Msg("Worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerID := fmt.Sprintf("%s-%d", w.config.WorkerID, workerNum)
	w.logger.Info().
		Str("worker_id", workerID).
		Msg("Starting worker goroutine")

	ticker := time.NewTicker(w.config.PollDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().
				Str("worker_id", workerID).
				Msg("Worker shutting down")
			return

		case <-w.stopChan:
			w.logger.Info().
				Str("worker_id", workerID).
				Msg("Worker received stop signal")
			return

		case <-ticker.C:
			w.processTasks(ctx, workerID)
		}
	}
}

func (w *Worker) processTasks(ctx context.Context, workerID string) {
	claimResult := w.queue.ClaimTasks(ctx, taskqueue.ClaimTasksInput{
		WorkerID:  workerID,
		TaskTypes: w.config.TaskTypes,
		MaxTasks:  w.config.MaxTasks,
	})

	if claimResult.Err != nil {
		w.logger.Error().Err(claimResult.Err).Msg("Failed to claim tasks")
		return
	}

	if len(claimResult.Tasks) == 0 {
		return // No tasks to process
	}

	w.logger.Info().
		Str("worker_id", workerID).
		Int("task_count", len(claimResult.Tasks)).
		Msg("Worker claimed tasks")

	// Tasks within one claimed batch are independent; run them concurrently
	// so a long scrape does not hold back the rest of the batch.
	g := new(errgroup.Group)
	if w.config.MaxTasks > 0 {
		g.SetLimit(w.config.MaxTasks)
	}
	for _, task := range claimResult.Tasks {
		g.Go(func() error {
			w.processTask(ctx, workerID, task)
			return nil
		})
	}
	g.Wait()
}

func (w *Worker) processTask(ctx context.Context, workerID string, task taskqueue.ClaimedTask) {
	w.wg.Add(1)
	defer w.wg.Done()

	handler, exists := w.handlers[task.TaskType]
	if !exists {
		w.logger.Warn().
			Str("task_type", task.TaskType).
			Msg("No handler for task type")
		w.queue.FailTask(ctx, task.ID, "No handler registered", false)
		return
	}

	w.logger.Info().
		Str("worker_id", workerID).
		Str("task_id", task.ID).
		Str("task_type", task.TaskType).
		Msg("Worker processing task")

	handlerErr := handler(ctx, task.Payload)
	if handlerErr != nil {
		w.queue.FailTask(ctx, task.ID, handlerErr.Error(), true)
		w.logger.Error().
			Str("task_id", task.ID).
			Err(handlerErr).
			Msg("Task failed")
		return
	}

	if err := w.queue.CompleteTask(ctx, task.ID, nil); err != nil {
		w.logger.Error().Err(err).Msg("Failed to mark task as completed")
		return
	}

	w.logger.Info().
		Str("worker_id", workerID).
		Str("task_id", task.ID).
		Msg("Worker completed task")
}
