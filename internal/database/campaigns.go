package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateCampaign inserts a draft campaign and links its initial recipients
// in one transaction
func (s *Store) CreateCampaign(ctx context.Context, campaign *Campaign, links []CampaignContact) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO campaigns (id, user_id, name, subject, template_content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'draft', NOW(), NOW())
		RETURNING created_at, updated_at
	`
	campaign.Status = CampaignStatusDraft
	err = tx.QueryRow(ctx, query,
		campaign.ID, campaign.UserID, campaign.Name, campaign.Subject, campaign.TemplateContent,
	).Scan(&campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating campaign: %w", err)
	}

	for _, link := range links {
		if err := insertCampaignContact(ctx, tx, link); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertCampaignContact(ctx context.Context, tx pgx.Tx, link CampaignContact) error {
	query := `
		INSERT INTO campaign_contacts (id, campaign_id, contact_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (campaign_id, contact_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, query, link.ID, link.CampaignID, link.ContactID); err != nil {
		return fmt.Errorf("error linking campaign contact: %w", err)
	}
	return nil
}

// AddCampaignContacts links additional contacts to a campaign. Duplicates
// are skipped via the unique constraint.
func (s *Store) AddCampaignContacts(ctx context.Context, links []CampaignContact) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, link := range links {
		if err := insertCampaignContact(ctx, tx, link); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const campaignColumns = `id, user_id, name, subject, template_content, status, created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Subject, &c.TemplateContent, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCampaign loads one campaign without an ownership check. Used by the
// job runner, which trusts the internally created task record.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	c, err := scanCampaign(s.pool.QueryRow(ctx, query, campaignID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading campaign: %w", err)
	}
	return &c, nil
}

// GetUserCampaign loads one campaign scoped to its owner
func (s *Store) GetUserCampaign(ctx context.Context, campaignID, userID string) (*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND user_id = $2`
	c, err := scanCampaign(s.pool.QueryRow(ctx, query, campaignID, userID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading campaign: %w", err)
	}
	return &c, nil
}

// ListCampaigns returns a user's campaigns with their recipient counts,
// newest first
func (s *Store) ListCampaigns(ctx context.Context, userID string, limit, offset int) ([]Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateCampaign writes the editable fields of a draft campaign. Campaigns
// past draft are immutable.
func (s *Store) UpdateCampaign(ctx context.Context, campaign *Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $3, subject = $4, template_content = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'draft'
	`
	tag, err := s.pool.Exec(ctx, query,
		campaign.ID, campaign.UserID, campaign.Name, campaign.Subject, campaign.TemplateContent)
	if err != nil {
		return fmt.Errorf("error updating campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCampaign removes a campaign with its links and tracking events
func (s *Store) DeleteCampaign(ctx context.Context, campaignID, userID string) error {
	query := `DELETE FROM campaigns WHERE id = $1 AND user_id = $2`
	tag, err := s.pool.Exec(ctx, query, campaignID, userID)
	if err != nil {
		return fmt.Errorf("error deleting campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCampaignStatus moves a campaign to the given lifecycle state
func (s *Store) SetCampaignStatus(ctx context.Context, campaignID string, status CampaignStatus) error {
	query := `UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, campaignID, status)
	if err != nil {
		return fmt.Errorf("error setting campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CampaignRecipients returns the contacts linked to a campaign in link
// insertion order
func (s *Store) CampaignRecipients(ctx context.Context, campaignID string) ([]Contact, error) {
	query := `
		SELECT c.id, c.user_id, c.scraping_task_id, c.source_url, c.scraped_on,
		       c.name, c.email, c.phone, c.city, c.country, c.personalized_info, c.status, c.created_at
		FROM campaign_contacts cc
		JOIN contacts c ON c.id = cc.contact_id
		WHERE cc.campaign_id = $1
		ORDER BY cc.created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("error loading campaign recipients: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning campaign recipient: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// CountCampaignRecipients returns how many contacts a campaign targets
func (s *Store) CountCampaignRecipients(ctx context.Context, campaignID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id = $1`
	if err := s.pool.QueryRow(ctx, query, campaignID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting campaign recipients: %w", err)
	}
	return count, nil
}

// AcquireCampaignLease takes the per-campaign send lease. INSERT ON CONFLICT
// DO NOTHING makes concurrent acquisition race-safe; the loser observes zero
// affected rows and reports the lease as held.
func (s *Store) AcquireCampaignLease(ctx context.Context, campaignID, taskID string) (bool, error) {
	query := `
		INSERT INTO campaign_send_leases (campaign_id, task_id, acquired_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (campaign_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query, campaignID, taskID)
	if err != nil {
		return false, fmt.Errorf("error acquiring campaign lease: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseCampaignLease drops the lease, but only for its current holder
func (s *Store) ReleaseCampaignLease(ctx context.Context, campaignID, taskID string) error {
	query := `DELETE FROM campaign_send_leases WHERE campaign_id = $1 AND task_id = $2`
	if _, err := s.pool.Exec(ctx, query, campaignID, taskID); err != nil {
		return fmt.Errorf("error releasing campaign lease: %w", err)
	}
	return nil
}
