package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/taskqueue"
	"github.com/outreachly/outreach-service/internal/types"
)

// TestOutreachStoreIntegration exercises the persistence layer against a real
// Postgres. One container, one pool, subtests share the schema.
func TestOutreachStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := setupTestDatabase(ctx)
	require.NoError(t, err)
	defer postgresContainer.Terminate(ctx)

	connStr, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err)

	require.NoError(t, database.Connect(ctx, connStr, 10, 2, 0, 0))
	defer database.Close()

	setupTestSchema(ctx, t)

	store := database.NewStore(database.Pool())

	t.Run("DiscoveryTaskLifecycle", func(t *testing.T) {
		testDiscoveryTaskLifecycle(ctx, t, store)
	})
	t.Run("ScrapingCountersAtomic", func(t *testing.T) {
		testScrapingCountersAtomic(ctx, t, store)
	})
	t.Run("SendingTaskAndCampaign", func(t *testing.T) {
		testSendingTaskAndCampaign(ctx, t, store)
	})
	t.Run("CampaignLease", func(t *testing.T) {
		testCampaignLease(ctx, t, store)
	})
	t.Run("TaskQueueClaim", func(t *testing.T) {
		testTaskQueueClaim(ctx, t)
	})
	t.Run("TrackingEvents", func(t *testing.T) {
		testTrackingEvents(ctx, t, store)
	})
}

func testDiscoveryTaskLifecycle(ctx context.Context, t *testing.T, store *database.Store) {
	task := &database.DiscoveryTask{ID: "dsc_it1", UserID: "user1", IndustryOrSeed: "https://acme.example"}
	require.NoError(t, store.CreateDiscoveryTask(ctx, task))
	assert.Equal(t, types.TaskStatusPending, task.Status)

	// Legal path: pending -> running -> completed.
	require.NoError(t, store.MarkDiscoveryRunning(ctx, task.ID))
	require.NoError(t, store.CompleteDiscovery(ctx, task.ID, 5, "discovery/dsc_it1/urls.txt"))

	loaded, err := store.GetDiscoveryTask(ctx, task.ID, "user1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, loaded.Status)
	assert.Equal(t, 5, loaded.DiscoveredURLsCount)
	require.NotNil(t, loaded.OutputFilePath)
	assert.Equal(t, "discovery/dsc_it1/urls.txt", *loaded.OutputFilePath)

	// Terminal states are immutable.
	err = store.MarkDiscoveryRunning(ctx, task.ID)
	assert.True(t, errors.Is(err, database.ErrInvalidTransition))
	err = store.FailDiscovery(ctx, task.ID, "too late")
	assert.True(t, errors.Is(err, database.ErrInvalidTransition))

	// Completing a pending task skips a step and is rejected.
	second := &database.DiscoveryTask{ID: "dsc_it2", UserID: "user1", IndustryOrSeed: "plumbers"}
	require.NoError(t, store.CreateDiscoveryTask(ctx, second))
	err = store.CompleteDiscovery(ctx, second.ID, 0, "")
	assert.True(t, errors.Is(err, database.ErrInvalidTransition))

	// Ownership scoping hides the task from other users.
	_, err = store.GetDiscoveryTask(ctx, task.ID, "user2")
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func testScrapingCountersAtomic(ctx context.Context, t *testing.T, store *database.Store) {
	task := &database.ScrapingTask{ID: "scr_it1", UserID: "user1"}
	require.NoError(t, store.CreateScrapingTask(ctx, task))

	require.NoError(t, store.MarkScrapingRunning(ctx, task.ID))
	require.NoError(t, store.SetScrapingTotal(ctx, task.ID, 3))

	counters := types.ScrapeCounters{TotalURLs: 3, ProcessedURLs: 3, SuccessfulURLs: 2, FailedURLs: 1}
	require.NoError(t, store.CompleteScraping(ctx, task.ID, counters, "scrapes/scr_it1/results.csv"))

	loaded, err := store.GetScrapingTask(ctx, task.ID, "user1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, loaded.Status)
	assert.Equal(t, loaded.ProcessedURLs, loaded.SuccessfulURLs+loaded.FailedURLs)
	assert.Equal(t, 3, loaded.TotalURLs)

	// Counter writes require a running record.
	err = store.SetScrapingTotal(ctx, task.ID, 99)
	assert.True(t, errors.Is(err, database.ErrInvalidTransition))
}

func testSendingTaskAndCampaign(ctx context.Context, t *testing.T, store *database.Store) {
	contact := &database.Contact{
		ID: "con_it1", UserID: "user1", SourceURL: "https://a.example",
		ScrapedOn: time.Now(), Name: "Ana", Email: "ana@example.com", Status: "Success",
	}
	require.NoError(t, store.CreateContact(ctx, contact))

	campaign := &database.Campaign{
		ID: "cmp_it1", UserID: "user1", Name: "Launch",
		Subject: "Hi [name]", TemplateContent: "Hello [name]",
	}
	links := []database.CampaignContact{{ID: "cct_it1", CampaignID: campaign.ID, ContactID: contact.ID}}
	require.NoError(t, store.CreateCampaign(ctx, campaign, links))
	assert.Equal(t, database.CampaignStatusDraft, campaign.Status)

	// Re-linking the same contact is a no-op.
	require.NoError(t, store.AddCampaignContacts(ctx, []database.CampaignContact{
		{ID: "cct_it2", CampaignID: campaign.ID, ContactID: contact.ID},
	}))
	count, err := store.CountCampaignRecipients(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recipients, err := store.CampaignRecipients(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "ana@example.com", recipients[0].Email)

	task := &database.SendingTask{ID: "snd_it1", CampaignID: campaign.ID}
	require.NoError(t, store.CreateSendingTask(ctx, task))
	require.NoError(t, store.MarkSendingRunning(ctx, task.ID))
	require.NoError(t, store.SetSendingTotal(ctx, task.ID, 1))

	counters := types.SendCounters{TotalRecipients: 1, SentCount: 1}
	require.NoError(t, store.CheckpointSending(ctx, task.ID, counters))
	require.NoError(t, store.CompleteSending(ctx, task.ID, counters))
	require.NoError(t, store.SetCampaignStatus(ctx, campaign.ID, database.CampaignStatusCompleted))

	loaded, err := store.GetSendingTask(ctx, task.ID, "user1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, loaded.Status)
	assert.Equal(t, loaded.TotalRecipients, loaded.SentCount+loaded.SkippedCount+loaded.FailedCount)

	// Ownership flows through the campaign join.
	_, err = store.GetSendingTask(ctx, task.ID, "user2")
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func testCampaignLease(ctx context.Context, t *testing.T, store *database.Store) {
	campaign := &database.Campaign{
		ID: "cmp_lease", UserID: "user1", Name: "Leased",
		Subject: "s", TemplateContent: "t",
	}
	require.NoError(t, store.CreateCampaign(ctx, campaign, nil))

	acquired, err := store.AcquireCampaignLease(ctx, campaign.ID, "snd_a")
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second acquisition loses while the lease is held.
	acquired, err = store.AcquireCampaignLease(ctx, campaign.ID, "snd_b")
	require.NoError(t, err)
	assert.False(t, acquired)

	// Release by a non-holder does nothing.
	require.NoError(t, store.ReleaseCampaignLease(ctx, campaign.ID, "snd_b"))
	acquired, err = store.AcquireCampaignLease(ctx, campaign.ID, "snd_b")
	require.NoError(t, err)
	assert.False(t, acquired)

	// Release by the holder frees the lease.
	require.NoError(t, store.ReleaseCampaignLease(ctx, campaign.ID, "snd_a"))
	acquired, err = store.AcquireCampaignLease(ctx, campaign.ID, "snd_b")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func testTaskQueueClaim(ctx context.Context, t *testing.T) {
	queue := taskqueue.New(database.Pool())

	scheduled := queue.ScheduleTask(ctx, taskqueue.ScheduleTaskInput{
		TaskType: string(taskqueue.TaskTypeDiscovery),
		Payload:  map[string]string{"taskId": "dsc_q1", "seed": "plumbers"},
	})
	require.NoError(t, scheduled.Err)
	require.NotEmpty(t, scheduled.ID)

	claim := queue.ClaimTasks(ctx, taskqueue.ClaimTasksInput{
		WorkerID:  "worker-a",
		TaskTypes: []string{string(taskqueue.TaskTypeDiscovery)},
		MaxTasks:  5,
	})
	require.NoError(t, claim.Err)
	require.Len(t, claim.Tasks, 1)
	assert.Equal(t, scheduled.ID, claim.Tasks[0].ID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(claim.Tasks[0].Payload, &payload))
	assert.Equal(t, "dsc_q1", payload["taskId"])

	// A second worker sees nothing while the task is processing.
	second := queue.ClaimTasks(ctx, taskqueue.ClaimTasksInput{
		WorkerID:  "worker-b",
		TaskTypes: []string{string(taskqueue.TaskTypeDiscovery)},
		MaxTasks:  5,
	})
	require.NoError(t, second.Err)
	assert.Empty(t, second.Tasks)

	// A retryable failure reschedules with an incremented retry count.
	require.NoError(t, queue.FailTask(ctx, scheduled.ID, "transient fault", true))
	task, err := queue.GetTask(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.StatusPending, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	require.NotNil(t, task.ErrorMessage)
	assert.Equal(t, "transient fault", *task.ErrorMessage)

	// The backoff pushes scheduled_for into the future, so an immediate
	// claim finds nothing.
	third := queue.ClaimTasks(ctx, taskqueue.ClaimTasksInput{
		WorkerID:  "worker-a",
		TaskTypes: []string{string(taskqueue.TaskTypeDiscovery)},
		MaxTasks:  5,
	})
	require.NoError(t, third.Err)
	assert.Empty(t, third.Tasks)
}

func testTrackingEvents(ctx context.Context, t *testing.T, store *database.Store) {
	contact := &database.Contact{
		ID: "con_trk", UserID: "user1", SourceURL: "https://t.example",
		ScrapedOn: time.Now(), Email: "trk@example.com", Status: "Success",
	}
	require.NoError(t, store.CreateContact(ctx, contact))

	campaign := &database.Campaign{
		ID: "cmp_trk", UserID: "user1", Name: "Tracked",
		Subject: "s", TemplateContent: "t",
	}
	require.NoError(t, store.CreateCampaign(ctx, campaign, []database.CampaignContact{
		{ID: "cct_trk", CampaignID: "cmp_trk", ContactID: "con_trk"},
	}))

	exists, err := store.CampaignExists(ctx, "cmp_trk")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.CampaignExists(ctx, "cmp_nope")
	require.NoError(t, err)
	assert.False(t, exists)

	ip := "203.0.113.9"
	link := "https://acme.example/pricing"
	open := &database.TrackingEvent{
		ID: "evt_trk1", CampaignID: "cmp_trk", ContactID: "con_trk",
		EventType: database.TrackingEventOpen, IPAddress: &ip, UserAgent: "UA",
	}
	require.NoError(t, store.InsertTrackingEvent(ctx, open))
	click := &database.TrackingEvent{
		ID: "evt_trk2", CampaignID: "cmp_trk", ContactID: "con_trk",
		EventType: database.TrackingEventClick, UserAgent: "UA", LinkClickedURL: &link,
	}
	require.NoError(t, store.InsertTrackingEvent(ctx, click))
	// The same contact opening twice counts once as unique.
	require.NoError(t, store.InsertTrackingEvent(ctx, &database.TrackingEvent{
		ID: "evt_trk3", CampaignID: "cmp_trk", ContactID: "con_trk",
		EventType: database.TrackingEventOpen, UserAgent: "UA",
	}))

	summary, err := store.GetTrackingSummary(ctx, "cmp_trk")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalOpens)
	assert.Equal(t, 1, summary.UniqueOpens)
	assert.Equal(t, 1, summary.TotalClicks)
	assert.Equal(t, 1, summary.UniqueClicks)

	opens, err := store.ListTrackingEvents(ctx, "cmp_trk", database.TrackingEventOpen)
	require.NoError(t, err)
	assert.Len(t, opens, 2)
	assert.Equal(t, "trk@example.com", opens[0].ContactEmail)

	// The skipped report aggregates per sending task, not per contact.
	task := &database.SendingTask{ID: "snd_trk", CampaignID: "cmp_trk"}
	require.NoError(t, store.CreateSendingTask(ctx, task))
	require.NoError(t, store.MarkSendingRunning(ctx, "snd_trk"))
	require.NoError(t, store.SetSendingTotal(ctx, "snd_trk", 3))
	require.NoError(t, store.CompleteSending(ctx, "snd_trk", types.SendCounters{
		TotalRecipients: 3, SentCount: 1, SkippedCount: 1, FailedCount: 1,
	}))

	reports, err := store.ListSkippedReports(ctx, "cmp_trk")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "snd_trk", reports[0].SendingTaskID)
	assert.Equal(t, 1, reports[0].SkippedCount)
	assert.Equal(t, 1, reports[0].FailedCount)
	assert.Nil(t, reports[0].ErrorMessage)
	assert.False(t, reports[0].Timestamp.IsZero())
}

// Helper functions

func setupTestDatabase(ctx context.Context) (*postgres.PostgresContainer, error) {
	return postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp").
					WithStartupTimeout(60*time.Second),
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(1).
					WithStartupTimeout(60*time.Second),
			),
		),
	)
}

func setupTestSchema(ctx context.Context, t *testing.T) {
	pool := database.Pool()

	schema := `
		CREATE TABLE IF NOT EXISTS discovery_tasks (
			id text PRIMARY KEY,
			user_id text NOT NULL,
			industry_or_seed text NOT NULL,
			status text NOT NULL DEFAULT 'pending',
			discovered_urls_count int NOT NULL DEFAULT 0,
			output_file_path text,
			error_message text,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS scraping_tasks (
			id text PRIMARY KEY,
			user_id text NOT NULL,
			discovery_task_id text REFERENCES discovery_tasks(id),
			status text NOT NULL DEFAULT 'pending',
			total_urls int NOT NULL DEFAULT 0,
			processed_urls int NOT NULL DEFAULT 0,
			successful_urls int NOT NULL DEFAULT 0,
			failed_urls int NOT NULL DEFAULT 0,
			output_csv_path text,
			error_message text,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS contacts (
			id text PRIMARY KEY,
			user_id text NOT NULL,
			scraping_task_id text REFERENCES scraping_tasks(id),
			source_url text NOT NULL DEFAULT '',
			scraped_on timestamptz NOT NULL DEFAULT NOW(),
			name text NOT NULL DEFAULT '',
			email text NOT NULL DEFAULT '',
			phone text NOT NULL DEFAULT '',
			city text NOT NULL DEFAULT '',
			country text NOT NULL DEFAULT '',
			personalized_info text NOT NULL DEFAULT '',
			status text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS campaigns (
			id text PRIMARY KEY,
			user_id text NOT NULL,
			name text NOT NULL,
			subject text NOT NULL,
			template_content text NOT NULL,
			status text NOT NULL DEFAULT 'draft',
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS campaign_contacts (
			id text PRIMARY KEY,
			campaign_id text NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			contact_id text NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			UNIQUE(campaign_id, contact_id)
		);

		CREATE TABLE IF NOT EXISTS sending_tasks (
			id text PRIMARY KEY,
			campaign_id text NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			status text NOT NULL DEFAULT 'pending',
			total_recipients int NOT NULL DEFAULT 0,
			sent_count int NOT NULL DEFAULT 0,
			skipped_count int NOT NULL DEFAULT 0,
			failed_count int NOT NULL DEFAULT 0,
			error_message text,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS tracking_events (
			id text PRIMARY KEY,
			campaign_id text NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			contact_id text NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			event_type text NOT NULL,
			ip_address text,
			user_agent text NOT NULL DEFAULT '',
			link_clicked_url text,
			timestamp timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS smtp_configurations (
			user_id text PRIMARY KEY,
			smtp_server text NOT NULL,
			smtp_port int NOT NULL,
			username text NOT NULL,
			password text NOT NULL,
			from_name text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS campaign_send_leases (
			campaign_id text PRIMARY KEY,
			task_id text NOT NULL,
			acquired_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS task_queue (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			task_type text NOT NULL,
			payload jsonb NOT NULL DEFAULT '{}',
			priority int NOT NULL DEFAULT 0,
			status text NOT NULL DEFAULT 'pending',
			scheduled_for timestamptz NOT NULL DEFAULT NOW(),
			started_at timestamptz,
			completed_at timestamptz,
			failed_at timestamptz,
			worker_id text,
			retry_count int NOT NULL DEFAULT 0,
			max_retries int NOT NULL DEFAULT 3,
			error_message text,
			result jsonb,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);
	`

	_, err := pool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
}
