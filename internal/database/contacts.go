package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ContactFilter narrows contact listings. Zero values mean no filtering.
type ContactFilter struct {
	Search         string // matches name, email, or source URL
	ScrapingTaskID string
	Status         string
	Limit          int
	Offset         int
}

const contactColumns = `id, user_id, scraping_task_id, source_url, scraped_on,
	       name, email, phone, city, country, personalized_info, status, created_at`

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID, &c.UserID, &c.ScrapingTaskID, &c.SourceURL, &c.ScrapedOn,
		&c.Name, &c.Email, &c.Phone, &c.City, &c.Country, &c.PersonalizedInfo,
		&c.Status, &c.CreatedAt,
	)
	return c, err
}

// CreateContact inserts one contact row
func (s *Store) CreateContact(ctx context.Context, contact *Contact) error {
	query := `
		INSERT INTO contacts (id, user_id, scraping_task_id, source_url, scraped_on,
		                      name, email, phone, city, country, personalized_info, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query,
		contact.ID, contact.UserID, contact.ScrapingTaskID, contact.SourceURL, contact.ScrapedOn,
		contact.Name, contact.Email, contact.Phone, contact.City, contact.Country,
		contact.PersonalizedInfo, contact.Status,
	).Scan(&contact.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating contact: %w", err)
	}
	return nil
}

// GetContact loads one contact scoped to its owner
func (s *Store) GetContact(ctx context.Context, id, userID string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 AND user_id = $2`
	c, err := scanContact(s.pool.QueryRow(ctx, query, id, userID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading contact: %w", err)
	}
	return &c, nil
}

// ListContacts returns a filtered page of a user's contacts plus the total
// count matching the filter
func (s *Store) ListContacts(ctx context.Context, userID string, filter ContactFilter) ([]Contact, int, error) {
	where := `WHERE user_id = $1`
	args := []any{userID}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d OR source_url ILIKE $%d)`, len(args), len(args), len(args))
	}
	if filter.ScrapingTaskID != "" {
		args = append(args, filter.ScrapingTaskID)
		where += fmt.Sprintf(` AND scraping_task_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM contacts ` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting contacts: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM contacts %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		contactColumns, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

// UpdateContact writes the editable fields of a contact
func (s *Store) UpdateContact(ctx context.Context, contact *Contact) error {
	query := `
		UPDATE contacts
		SET name = $3, email = $4, phone = $5, city = $6, country = $7, personalized_info = $8
		WHERE id = $1 AND user_id = $2
	`
	tag, err := s.pool.Exec(ctx, query,
		contact.ID, contact.UserID,
		contact.Name, contact.Email, contact.Phone, contact.City, contact.Country, contact.PersonalizedInfo,
	)
	if err != nil {
		return fmt.Errorf("error updating contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteContacts removes the given contacts in bulk and reports how many
// rows were actually deleted. Missing IDs are ignored.
func (s *Store) DeleteContacts(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM contacts WHERE user_id = $1 AND id = ANY($2)`
	tag, err := s.pool.Exec(ctx, query, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("error deleting contacts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
