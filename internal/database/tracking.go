package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TrackingSummary aggregates engagement per campaign
type TrackingSummary struct {
	CampaignID     string `json:"campaign_id"`
	TotalOpens     int    `json:"total_opens"`
	UniqueOpens    int    `json:"unique_opens"`
	TotalClicks    int    `json:"total_clicks"`
	UniqueClicks   int    `json:"unique_clicks"`
	TotalSent      int    `json:"total_sent"`
	TotalSkipped   int    `json:"total_skipped"`
	TotalRejected  int    `json:"total_failed"`
	RecipientCount int    `json:"recipient_count"`
}

// InsertTrackingEvent appends one open/click record. The event log is
// append-only; nothing updates or deletes rows here.
func (s *Store) InsertTrackingEvent(ctx context.Context, event *TrackingEvent) error {
	query := `
		INSERT INTO tracking_events (id, campaign_id, contact_id, event_type,
		                             ip_address, user_agent, link_clicked_url, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING timestamp
	`
	err := s.pool.QueryRow(ctx, query,
		event.ID, event.CampaignID, event.ContactID, event.EventType,
		event.IPAddress, event.UserAgent, event.LinkClickedURL,
	).Scan(&event.Timestamp)
	if err != nil {
		return fmt.Errorf("error inserting tracking event: %w", err)
	}
	return nil
}

// CampaignExists reports whether the campaign id references a real row.
// Tracking endpoints use it to silently drop events for unknown campaigns.
func (s *Store) CampaignExists(ctx context.Context, campaignID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`
	if err := s.pool.QueryRow(ctx, query, campaignID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking campaign existence: %w", err)
	}
	return exists, nil
}

// ContactExists reports whether the contact id references a real row
func (s *Store) ContactExists(ctx context.Context, contactID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1)`
	if err := s.pool.QueryRow(ctx, query, contactID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking contact existence: %w", err)
	}
	return exists, nil
}

// GetTrackingSummary aggregates opens, clicks, and send counters for one
// campaign. Counters come from the most recent sending task.
func (s *Store) GetTrackingSummary(ctx context.Context, campaignID string) (*TrackingSummary, error) {
	summary := TrackingSummary{CampaignID: campaignID}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'open'),
			COUNT(DISTINCT contact_id) FILTER (WHERE event_type = 'open'),
			COUNT(*) FILTER (WHERE event_type = 'click'),
			COUNT(DISTINCT contact_id) FILTER (WHERE event_type = 'click')
		FROM tracking_events
		WHERE campaign_id = $1
	`
	err := s.pool.QueryRow(ctx, query, campaignID).Scan(
		&summary.TotalOpens, &summary.UniqueOpens, &summary.TotalClicks, &summary.UniqueClicks,
	)
	if err != nil {
		return nil, fmt.Errorf("error aggregating tracking events: %w", err)
	}

	countersQuery := `
		SELECT total_recipients, sent_count, skipped_count, failed_count
		FROM sending_tasks
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	err = s.pool.QueryRow(ctx, countersQuery, campaignID).Scan(
		&summary.RecipientCount, &summary.TotalSent, &summary.TotalSkipped, &summary.TotalRejected,
	)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("error loading send counters: %w", err)
	}

	return &summary, nil
}

// ListTrackingEvents returns a campaign's events of one type with the
// contact identity joined in, newest first
func (s *Store) ListTrackingEvents(ctx context.Context, campaignID string, eventType TrackingEventType) ([]TrackingEventDetail, error) {
	query := `
		SELECT e.id, e.campaign_id, e.contact_id, e.event_type,
		       e.ip_address, e.user_agent, e.link_clicked_url, e.timestamp,
		       c.name, c.email
		FROM tracking_events e
		JOIN contacts c ON c.id = e.contact_id
		WHERE e.campaign_id = $1 AND e.event_type = $2
		ORDER BY e.timestamp DESC
	`
	rows, err := s.pool.Query(ctx, query, campaignID, eventType)
	if err != nil {
		return nil, fmt.Errorf("error listing tracking events: %w", err)
	}
	defer rows.Close()

	events := []TrackingEventDetail{}
	for rows.Next() {
		var d TrackingEventDetail
		if err := rows.Scan(
			&d.ID, &d.CampaignID, &d.ContactID, &d.EventType,
			&d.IPAddress, &d.UserAgent, &d.LinkClickedURL, &d.Timestamp,
			&d.ContactName, &d.ContactEmail,
		); err != nil {
			return nil, fmt.Errorf("error scanning tracking event: %w", err)
		}
		events = append(events, d)
	}
	return events, rows.Err()
}

// SkippedReport summarizes the skip and failure counters of one sending task
type SkippedReport struct {
	SendingTaskID string    `json:"sending_task_id"`
	SkippedCount  int       `json:"skipped_count"`
	FailedCount   int       `json:"failed_count"`
	ErrorMessage  *string   `json:"error_message"`
	Timestamp     time.Time `json:"timestamp"`
}

// ListSkippedReports returns per-sending-task skip and failure counters
// for a campaign, newest first
func (s *Store) ListSkippedReports(ctx context.Context, campaignID string) ([]SkippedReport, error) {
	query := `
		SELECT id, skipped_count, failed_count, error_message, updated_at
		FROM sending_tasks
		WHERE campaign_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("error listing skipped reports: %w", err)
	}
	defer rows.Close()

	reports := []SkippedReport{}
	for rows.Next() {
		var r SkippedReport
		if err := rows.Scan(&r.SendingTaskID, &r.SkippedCount, &r.FailedCount, &r.ErrorMessage, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning skipped report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
