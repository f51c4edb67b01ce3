package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertSMTPConfiguration writes a user's mail transport settings, replacing
// any earlier configuration. One row per user.
func (s *Store) UpsertSMTPConfiguration(ctx context.Context, cfg *SMTPConfiguration) error {
	query := `
		INSERT INTO smtp_configurations (user_id, smtp_server, smtp_port, username, password, from_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET smtp_server = EXCLUDED.smtp_server,
		    smtp_port = EXCLUDED.smtp_port,
		    username = EXCLUDED.username,
		    password = EXCLUDED.password,
		    from_name = EXCLUDED.from_name,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		cfg.UserID, cfg.Server, cfg.Port, cfg.Username, cfg.Password, cfg.FromName,
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting SMTP configuration: %w", err)
	}
	return nil
}

// GetSMTPConfiguration loads a user's mail transport settings
func (s *Store) GetSMTPConfiguration(ctx context.Context, userID string) (*SMTPConfiguration, error) {
	query := `
		SELECT user_id, smtp_server, smtp_port, username, password, from_name, created_at, updated_at
		FROM smtp_configurations
		WHERE user_id = $1
	`
	var cfg SMTPConfiguration
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&cfg.UserID, &cfg.Server, &cfg.Port, &cfg.Username, &cfg.Password,
		&cfg.FromName, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading SMTP configuration: %w", err)
	}
	return &cfg, nil
}

// DeleteSMTPConfiguration removes a user's mail transport settings
func (s *Store) DeleteSMTPConfiguration(ctx context.Context, userID string) error {
	query := `DELETE FROM smtp_configurations WHERE user_id = $1`
	tag, err := s.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("error deleting SMTP configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
