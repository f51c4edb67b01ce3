package jobs

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/storage"
	"github.com/outreachly/outreach-service/internal/types"
)

// ErrValidation marks input errors detected before any unit of work runs.
// The caller gets the error synchronously; the task record is not touched.
var ErrValidation = errors.New("validation error")

// Fetcher is the external fetch+extract capability. A returned error covers
// one URL only and never aborts the batch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (types.ScrapeResult, error)
}

// Sender is the external mail-transport capability
type Sender interface {
	Send(ctx context.Context, cfg *database.SMTPConfiguration, to, subject, body string) error
}

// DiscoveryStore persists discovery task state transitions
type DiscoveryStore interface {
	MarkDiscoveryRunning(ctx context.Context, id string) error
	CompleteDiscovery(ctx context.Context, id string, urlCount int, outputPath string) error
	FailDiscovery(ctx context.Context, id, message string) error
}

// ScrapingStore persists scraping task state transitions and scraped contacts
type ScrapingStore interface {
	MarkScrapingRunning(ctx context.Context, id string) error
	SetScrapingTotal(ctx context.Context, id string, totalURLs int) error
	CompleteScraping(ctx context.Context, id string, counters types.ScrapeCounters, csvPath string) error
	FailScraping(ctx context.Context, id, message string) error
	CreateContact(ctx context.Context, contact *database.Contact) error
}

// SendingStore persists sending task state, campaign status, and recipient data
type SendingStore interface {
	MarkSendingRunning(ctx context.Context, id string) error
	SetSendingTotal(ctx context.Context, id string, totalRecipients int) error
	CheckpointSending(ctx context.Context, id string, counters types.SendCounters) error
	CompleteSending(ctx context.Context, id string, counters types.SendCounters) error
	FailSending(ctx context.Context, id, message string) error

	GetCampaign(ctx context.Context, campaignID string) (*database.Campaign, error)
	SetCampaignStatus(ctx context.Context, campaignID string, status database.CampaignStatus) error
	CampaignRecipients(ctx context.Context, campaignID string) ([]database.Contact, error)
	GetSMTPConfiguration(ctx context.Context, userID string) (*database.SMTPConfiguration, error)

	// AcquireCampaignLease serializes sends per campaign. It returns false
	// when another sending task currently holds the lease.
	AcquireCampaignLease(ctx context.Context, campaignID, taskID string) (bool, error)
	ReleaseCampaignLease(ctx context.Context, campaignID, taskID string) error
}

// Env carries the storage and dispatch handles a job needs. Jobs receive it
// explicitly so tests can run them against in-memory fakes.
type Env struct {
	Discovery DiscoveryStore
	Scraping  ScrapingStore
	Sending   SendingStore
	Artifacts storage.Storage
	Fetcher   Fetcher
	Sender    Sender
	Logger    zerolog.Logger

	// TrackingBaseURL is the public origin of the tracking endpoints. When
	// set, sent mail carries the open pixel; empty disables injection.
	TrackingBaseURL string
}

// Outcome is the tagged result of one job execution: counters on success,
// a message on failure.
type Outcome struct {
	TaskID string         `json:"taskId"`
	Kind   types.TaskKind `json:"kind"`
	Err    error          `json:"-"`

	// Discovery
	DiscoveredURLs int    `json:"discoveredUrls,omitempty"`
	OutputPath     string `json:"outputPath,omitempty"`

	// Scraping
	Scrape types.ScrapeCounters `json:"scrape,omitempty"`

	// Sending
	Send types.SendCounters `json:"send,omitempty"`
}

// Failed reports whether the job terminated with a fault
func (o Outcome) Failed() bool {
	return o.Err != nil
}
