package database

import (
	"time"

	"github.com/outreachly/outreach-service/internal/types"
)

// DiscoveryTask tracks one domain discovery job
type DiscoveryTask struct {
	ID                  string           `json:"id"`      // cuid2, dsc_ prefix
	UserID              string           `json:"user_id"` // owning principal
	IndustryOrSeed      string           `json:"industry_or_seed_domain"`
	Status              types.TaskStatus `json:"status"`
	DiscoveredURLsCount int              `json:"discovered_urls_count"`
	OutputFilePath      *string          `json:"output_file_path"` // artifact key, set on completion
	ErrorMessage        *string          `json:"error_message"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ScrapingTask tracks one bulk scraping job
type ScrapingTask struct {
	ID              string           `json:"id"` // cuid2, scr_ prefix
	UserID          string           `json:"user_id"`
	DiscoveryTaskID *string          `json:"discovery_task_id"` // optional link to the producing discovery task
	Status          types.TaskStatus `json:"status"`
	TotalURLs       int              `json:"total_urls"`
	ProcessedURLs   int              `json:"processed_urls"`
	SuccessfulURLs  int              `json:"successful_urls"`
	FailedURLs      int              `json:"failed_urls"`
	OutputCSVPath   *string          `json:"output_csv_path"`
	ErrorMessage    *string          `json:"error_message"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// SendingTask tracks one campaign sending job
type SendingTask struct {
	ID              string           `json:"id"` // cuid2, snd_ prefix
	CampaignID      string           `json:"campaign_id"`
	Status          types.TaskStatus `json:"status"`
	TotalRecipients int              `json:"total_recipients"`
	SentCount       int              `json:"sent_count"`
	SkippedCount    int              `json:"skipped_count"`
	FailedCount     int              `json:"failed_count"`
	ErrorMessage    *string          `json:"error_message"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Contact stores one scraped or imported contact, scoped to a user
type Contact struct {
	ID               string    `json:"id"` // cuid2, con_ prefix
	UserID           string    `json:"user_id"`
	ScrapingTaskID   *string   `json:"scraping_task_id"` // set when produced by a scraping task
	SourceURL        string    `json:"source_url"`
	ScrapedOn        time.Time `json:"scraped_on"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	City             string    `json:"city"`
	Country          string    `json:"country"`
	PersonalizedInfo string    `json:"personalized_info"`
	Status           string    `json:"status"` // "Success", a failure reason, or "Imported"
	CreatedAt        time.Time `json:"created_at"`
}

// CampaignStatus is the lifecycle of an email campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Campaign is a named template plus a recipient set
type Campaign struct {
	ID              string         `json:"id"` // cuid2, cmp_ prefix
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Subject         string         `json:"subject"`
	TemplateContent string         `json:"template_content"` // bracket placeholders, e.g. [name]
	Status          CampaignStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CampaignContact links a campaign to a contact. A contact appears at most
// once per campaign (unique constraint on campaign_id, contact_id).
type CampaignContact struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	ContactID  string    `json:"contact_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TrackingEventType is the kind of engagement signal recorded
type TrackingEventType string

const (
	TrackingEventOpen  TrackingEventType = "open"
	TrackingEventClick TrackingEventType = "click"
)

// TrackingEvent is one append-only open/click record tied to campaign+contact
type TrackingEvent struct {
	ID             string            `json:"id"` // cuid2, evt_ prefix
	CampaignID     string            `json:"campaign_id"`
	ContactID      string            `json:"contact_id"`
	EventType      TrackingEventType `json:"event_type"`
	IPAddress      *string           `json:"ip_address"`
	UserAgent      string            `json:"user_agent"`
	LinkClickedURL *string           `json:"link_clicked_url"` // click events only
	Timestamp      time.Time         `json:"timestamp"`
}

// TrackingEventDetail is a tracking event with the contact identity joined
// in, the shape the read API returns
type TrackingEventDetail struct {
	TrackingEvent
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
}

// SMTPConfiguration stores the per-user mail transport settings
type SMTPConfiguration struct {
	UserID    string    `json:"user_id"`
	Server    string    `json:"smtp_server"`
	Port      int       `json:"smtp_port"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	FromName  string    `json:"from_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
