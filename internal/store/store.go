package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"farmbox-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetBoxSizes retrieves all active box sizes
func (s *Store) GetBoxSizes(ctx context.Context) ([]models.BoxSize, error) {
	var sizes []models.BoxSize
	err := s.db.SelectContext(ctx, &sizes,
		"SELECT * FROM box_sizes WHERE is_active = true ORDER BY base_price")
	return sizes, err
}

// GetBoxSizeByName retrieves an active box size by name
func (s *Store) GetBoxSizeByName(ctx context.Context, name string) (*models.BoxSize, error) {
	var size models.BoxSize
	err := s.db.GetContext(ctx, &size,
		"SELECT * FROM box_sizes WHERE name = $1 AND is_active = true", name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("box size not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return &size, nil
}

// GetProductPrice retrieves the current catalog price for a product
func (s *Store) GetProductPrice(ctx context.Context, productID int64) (int64, error) {
	var price int64
	err := s.db.GetContext(ctx, &price,
		"SELECT price FROM products WHERE id = $1", productID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("product not found: %d", productID)
	}
	return price, err
}

// IsEventProcessed checks if a webhook event has already been handled
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a webhook event as handled
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
