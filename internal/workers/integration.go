package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreachly/outreach-service/internal/jobs"
	"github.com/outreachly/outreach-service/internal/taskqueue"
)

// DiscoveryPayload is the queue payload of a discovery task
type DiscoveryPayload struct {
	TaskID string `json:"taskId"`
	Seed   string `json:"seed"`
}

// SendingPayload is the queue payload of a sending task
type SendingPayload struct {
	TaskID     string `json:"taskId"`
	CampaignID string `json:"campaignId"`
}

// NewOutreachWorker builds a worker with handlers for all three job kinds
// wired to the given environment. Domain task records own their terminal
// state; the queue row mirrors whether the run itself succeeded. Guarded
// status transitions make queue-level retries of a terminal record no-ops.
func NewOutreachWorker(queue *taskqueue.TaskQueue, env *jobs.Env, config WorkerConfig, logger zerolog.Logger) *Worker {
	worker := New(queue, config, logger)
	worker.RegisterHandler(taskqueue.TaskTypeDiscovery, NewDiscoveryHandler(env))
	worker.RegisterHandler(taskqueue.TaskTypeScraping, NewScrapingHandler(env))
	worker.RegisterHandler(taskqueue.TaskTypeSending, NewSendingHandler(env))
	return worker
}

// NewDiscoveryHandler returns the queue handler for discovery payloads
func NewDiscoveryHandler(env *jobs.Env) func(context.Context, []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var req DiscoveryPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("failed to unmarshal discovery payload: %w", err)
		}

		outcome := jobs.RunDiscovery(ctx, env, req.TaskID, req.Seed)
		return outcome.Err
	}
}

// NewScrapingHandler returns the queue handler for scraping payloads
func NewScrapingHandler(env *jobs.Env) func(context.Context, []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var in jobs.ScrapeInput
		if err := json.Unmarshal(payload, &in); err != nil {
			return fmt.Errorf("failed to unmarshal scraping payload: %w", err)
		}

		outcome := jobs.RunScraping(ctx, env, in)
		return outcome.Err
	}
}

// NewSendingHandler returns the queue handler for sending payloads
func NewSendingHandler(env *jobs.Env) func(context.Context, []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var req SendingPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("failed to unmarshal sending payload: %w", err)
		}

		outcome := jobs.RunSending(ctx, env, req.TaskID, req.CampaignID)
		return outcome.Err
	}
}

// CleanupOldTasks removes terminal queue rows past the retention window
func CleanupOldTasks(ctx context.Context, queue *taskqueue.TaskQueue, retention time.Duration, logger zerolog.Logger) error {
	days := int(retention.Hours() / 24)
	if days < 1 {
		days = 1
	}
	count, err := queue.CleanupOldTasks(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to cleanup old tasks: %w", err)
	}
	logger.Info().Int("count", count).Msg("Cleaned up old queue tasks")
	return nil
}
