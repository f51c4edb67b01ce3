package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreachly/outreach-service/internal/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTransition is returned when a guarded status update matched no
// row, meaning the record is missing or not in the required prior state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store wraps a pgx pool with the persistence operations of the service.
// All status updates are single guarded UPDATEs so a record can never skip
// a lifecycle step or leave a terminal state.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store backed by the given pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// transitionGuard maps a target status to the prior states that permit it
func transitionGuard(to types.TaskStatus) string {
	switch to {
	case types.TaskStatusRunning:
		return "status = 'pending'"
	case types.TaskStatusCompleted, types.TaskStatusFailed:
		return "status = 'running'"
	default:
		return "false"
	}
}

// --- Discovery tasks ---

// CreateDiscoveryTask inserts a new pending discovery task
func (s *Store) CreateDiscoveryTask(ctx context.Context, task *DiscoveryTask) error {
	query := `
		INSERT INTO discovery_tasks (id, user_id, industry_or_seed, status, discovered_urls_count, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	task.Status = types.TaskStatusPending
	err := s.pool.QueryRow(ctx, query, task.ID, task.UserID, task.IndustryOrSeed).
		Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating discovery task: %w", err)
	}
	return nil
}

// GetDiscoveryTask loads one discovery task scoped to its owner
func (s *Store) GetDiscoveryTask(ctx context.Context, id, userID string) (*DiscoveryTask, error) {
	query := `
		SELECT id, user_id, industry_or_seed, status, discovered_urls_count,
		       output_file_path, error_message, created_at, updated_at
		FROM discovery_tasks
		WHERE id = $1 AND user_id = $2
	`
	var t DiscoveryTask
	err := s.pool.QueryRow(ctx, query, id, userID).Scan(
		&t.ID, &t.UserID, &t.IndustryOrSeed, &t.Status, &t.DiscoveredURLsCount,
		&t.OutputFilePath, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading discovery task: %w", err)
	}
	return &t, nil
}

// ListDiscoveryTasks returns a user's discovery tasks, newest first
func (s *Store) ListDiscoveryTasks(ctx context.Context, userID string, limit, offset int) ([]DiscoveryTask, error) {
	query := `
		SELECT id, user_id, industry_or_seed, status, discovered_urls_count,
		       output_file_path, error_message, created_at, updated_at
		FROM discovery_tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing discovery tasks: %w", err)
	}
	defer rows.Close()

	tasks := []DiscoveryTask{}
	for rows.Next() {
		var t DiscoveryTask
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.IndustryOrSeed, &t.Status, &t.DiscoveredURLsCount,
			&t.OutputFilePath, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning discovery task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkDiscoveryRunning moves a pending discovery task to running
func (s *Store) MarkDiscoveryRunning(ctx context.Context, id string) error {
	query := `UPDATE discovery_tasks SET status = 'running', updated_at = NOW() WHERE id = $1 AND ` + transitionGuard(types.TaskStatusRunning)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error marking discovery task running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discovery task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// CompleteDiscovery records the terminal success state with its counters
// and artifact path in one atomic update
func (s *Store) CompleteDiscovery(ctx context.Context, id string, urlCount int, outputPath string) error {
	query := `
		UPDATE discovery_tasks
		SET status = 'completed', discovered_urls_count = $2, output_file_path = $3, updated_at = NOW()
		WHERE id = $1 AND ` + transitionGuard(types.TaskStatusCompleted)
	tag, err := s.pool.Exec(ctx, query, id, urlCount, outputPath)
	if err != nil {
		return fmt.Errorf("error completing discovery task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discovery task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// FailDiscovery records the terminal failure state with a message
func (s *Store) FailDiscovery(ctx context.Context, id, message string) error {
	query := `
		UPDATE discovery_tasks
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND ` + transitionGuard(types.TaskStatusFailed)
	tag, err := s.pool.Exec(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("error failing discovery task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discovery task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// --- Scraping tasks ---

// CreateScrapingTask inserts a new pending scraping task
func (s *Store) CreateScrapingTask(ctx context.Context, task *ScrapingTask) error {
	query := `
		INSERT INTO scraping_tasks (id, user_id, discovery_task_id, status,
		                            total_urls, processed_urls, successful_urls, failed_urls,
		                            created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, 0, 0, 0, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	task.Status = types.TaskStatusPending
	err := s.pool.QueryRow(ctx, query, task.ID, task.UserID, task.DiscoveryTaskID).
		Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating scraping task: %w", err)
	}
	return nil
}

// GetScrapingTask loads one scraping task scoped to its owner
func (s *Store) GetScrapingTask(ctx context.Context, id, userID string) (*ScrapingTask, error) {
	query := `
		SELECT id, user_id, discovery_task_id, status, total_urls, processed_urls,
		       successful_urls, failed_urls, output_csv_path, error_message, created_at, updated_at
		FROM scraping_tasks
		WHERE id = $1 AND user_id = $2
	`
	var t ScrapingTask
	err := s.pool.QueryRow(ctx, query, id, userID).Scan(
		&t.ID, &t.UserID, &t.DiscoveryTaskID, &t.Status, &t.TotalURLs, &t.ProcessedURLs,
		&t.SuccessfulURLs, &t.FailedURLs, &t.OutputCSVPath, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading scraping task: %w", err)
	}
	return &t, nil
}

// ListScrapingTasks returns a user's scraping tasks, newest first
func (s *Store) ListScrapingTasks(ctx context.Context, userID string, limit, offset int) ([]ScrapingTask, error) {
	query := `
		SELECT id, user_id, discovery_task_id, status, total_urls, processed_urls,
		       successful_urls, failed_urls, output_csv_path, error_message, created_at, updated_at
		FROM scraping_tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing scraping tasks: %w", err)
	}
	defer rows.Close()

	tasks := []ScrapingTask{}
	for rows.Next() {
		var t ScrapingTask
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.DiscoveryTaskID, &t.Status, &t.TotalURLs, &t.ProcessedURLs,
			&t.SuccessfulURLs, &t.FailedURLs, &t.OutputCSVPath, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning scraping task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkScrapingRunning moves a pending scraping task to running
func (s *Store) MarkScrapingRunning(ctx context.Context, id string) error {
	query := `UPDATE scraping_tasks SET status = 'running', updated_at = NOW() WHERE id = $1 AND ` + transitionGuard(types.TaskStatusRunning)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error marking scraping task running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scraping task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// SetScrapingTotal records the batch size once the URL list is resolved
func (s *Store) SetScrapingTotal(ctx context.Context, id string, totalURLs int) error {
	query := `UPDATE scraping_tasks SET total_urls = $2, updated_at = NOW() WHERE id = $1 AND status = 'running'`
	tag, err := s.pool.Exec(ctx, query, id, totalURLs)
	if err != nil {
		return fmt.Errorf("error setting scraping total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scraping task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// CompleteScraping records the terminal success state with all counters and
// the CSV artifact path in one atomic update
func (s *Store) CompleteScraping(ctx context.Context, id string, counters types.ScrapeCounters, csvPath string) error {
	query := `
		UPDATE scraping_tasks
		SET status = 'completed', total_urls = $2, processed_urls = $3,
		    successful_urls = $4, failed_urls = $5, output_csv_path = $6, updated_at = NOW()
		WHERE id = $1 AND ` + transitionGuard(types.TaskStatusCompleted)
	tag, err := s.pool.Exec(ctx, query, id,
		counters.TotalURLs, counters.ProcessedURLs, counters.SuccessfulURLs, counters.FailedURLs, csvPath)
	if err != nil {
		return fmt.Errorf("error completing scraping task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scraping task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// FailScraping records the terminal failure state with a message. Counters
// already written stay as they were at the fault.
func (s *Store) FailScraping(ctx context.Context, id, message string) error {
	query := `
		UPDATE scraping_tasks
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND ` + transitionGuard(types.TaskStatusFailed)
	tag, err := s.pool.Exec(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("error failing scraping task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scraping task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// --- Sending tasks ---

// CreateSendingTask inserts a new pending sending task
func (s *Store) CreateSendingTask(ctx context.Context, task *SendingTask) error {
	query := `
		INSERT INTO sending_tasks (id, campaign_id, status,
		                           total_recipients, sent_count, skipped_count, failed_count,
		                           created_at, updated_at)
		VALUES ($1, $2, 'pending', 0, 0, 0, 0, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	task.Status = types.TaskStatusPending
	err := s.pool.QueryRow(ctx, query, task.ID, task.CampaignID).
		Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating sending task: %w", err)
	}
	return nil
}

// GetSendingTask loads one sending task. Ownership is checked through the
// campaign the task belongs to.
func (s *Store) GetSendingTask(ctx context.Context, id, userID string) (*SendingTask, error) {
	query := `
		SELECT t.id, t.campaign_id, t.status, t.total_recipients, t.sent_count,
		       t.skipped_count, t.failed_count, t.error_message, t.created_at, t.updated_at
		FROM sending_tasks t
		JOIN campaigns c ON c.id = t.campaign_id
		WHERE t.id = $1 AND c.user_id = $2
	`
	var t SendingTask
	err := s.pool.QueryRow(ctx, query, id, userID).Scan(
		&t.ID, &t.CampaignID, &t.Status, &t.TotalRecipients, &t.SentCount,
		&t.SkippedCount, &t.FailedCount, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading sending task: %w", err)
	}
	return &t, nil
}

// MarkSendingRunning moves a pending sending task to running
func (s *Store) MarkSendingRunning(ctx context.Context, id string) error {
	query := `UPDATE sending_tasks SET status = 'running', updated_at = NOW() WHERE id = $1 AND ` + transitionGuard(types.TaskStatusRunning)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error marking sending task running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sending task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// SetSendingTotal records the recipient count once the set is resolved
func (s *Store) SetSendingTotal(ctx context.Context, id string, totalRecipients int) error {
	query := `UPDATE sending_tasks SET total_recipients = $2, updated_at = NOW() WHERE id = $1 AND status = 'running'`
	tag, err := s.pool.Exec(ctx, query, id, totalRecipients)
	if err != nil {
		return fmt.Errorf("error setting sending total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sending task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// CheckpointSending writes all four counters in one update so concurrent
// readers always observe a consistent sum
func (s *Store) CheckpointSending(ctx context.Context, id string, counters types.SendCounters) error {
	query := `
		UPDATE sending_tasks
		SET total_recipients = $2, sent_count = $3, skipped_count = $4, failed_count = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`
	tag, err := s.pool.Exec(ctx, query, id,
		counters.TotalRecipients, counters.SentCount, counters.SkippedCount, counters.FailedCount)
	if err != nil {
		return fmt.Errorf("error checkpointing sending task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sending task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// CompleteSending records the terminal success state with final counters
func (s *Store) CompleteSending(ctx context.Context, id string, counters types.SendCounters) error {
	query := `
		UPDATE sending_tasks
		SET status = 'completed', total_recipients = $2, sent_count = $3,
		    skipped_count = $4, failed_count = $5, updated_at = NOW()
		WHERE id = $1 AND ` + transitionGuard(types.TaskStatusCompleted)
	tag, err := s.pool.Exec(ctx, query, id,
		counters.TotalRecipients, counters.SentCount, counters.SkippedCount, counters.FailedCount)
	if err != nil {
		return fmt.Errorf("error completing sending task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sending task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// FailSending records the terminal failure state with a message
func (s *Store) FailSending(ctx context.Context, id, message string) error {
	query := `
		UPDATE sending_tasks
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND ` + transitionGuard(types.TaskStatusFailed)
	tag, err := s.pool.Exec(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("error failing sending task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sending task %s: %w", id, ErrInvalidTransition)
	}
	return nil
}
