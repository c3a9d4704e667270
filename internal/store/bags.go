package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"farmbox-service/internal/models"
)

// ErrVersionConflict is returned when a versioned bag update lost against a
// concurrent write. The caller should re-read the bag and retry.
var ErrVersionConflict = errors.New("weekly bag version conflict")

// GetOrCreateCurrentBag fetches the bag for (user, weekStart), creating it
// with the given box size, price and cutoff when absent. Idempotent per
// (user, week): repeated calls return the existing row.
func (s *Store) GetOrCreateCurrentBag(ctx context.Context, userID string, weekStart time.Time, boxSize string, boxPrice int64, deliveryFee int64, cutoff time.Time) (*models.WeeklyBag, error) {
	query := `
		INSERT INTO weekly_bags (user_id, week_start, box_size, box_price, subtotal, delivery_fee, total_amount, cutoff_time)
		VALUES ($1, $2, $3, $4, $4, $5, $4 + $5, $6)
		ON CONFLICT (user_id, week_start) DO UPDATE SET updated_at = NOW()
		RETURNING *`

	var bag models.WeeklyBag
	if err := s.db.GetContext(ctx, &bag, query, userID, weekStart, boxSize, boxPrice, deliveryFee, cutoff); err != nil {
		return nil, fmt.Errorf("failed to get or create weekly bag: %w", err)
	}
	return &bag, nil
}

// GetBagByID retrieves a weekly bag by ID
func (s *Store) GetBagByID(ctx context.Context, id int64) (*models.WeeklyBag, error) {
	var bag models.WeeklyBag
	err := s.db.GetContext(ctx, &bag, "SELECT * FROM weekly_bags WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("weekly bag not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &bag, nil
}

// UpdateBoxSize applies a box-size change using optimistic concurrency: the
// update only succeeds when the caller supplies the version it read.
// Subtotal and total are recomputed from the price delta of the box portion.
func (s *Store) UpdateBoxSize(ctx context.Context, bagID int64, boxSize string, boxPrice int64, version int64) (*models.WeeklyBag, error) {
	query := `
		UPDATE weekly_bags
		SET box_size = $1,
		    subtotal = subtotal - box_price + $2,
		    total_amount = total_amount - box_price + $2,
		    box_price = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING *`

	var bag models.WeeklyBag
	err := s.db.GetContext(ctx, &bag, query, boxSize, boxPrice, bagID, version)
	if err == sql.ErrNoRows {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update box size: %w", err)
	}
	return &bag, nil
}

// ConfirmBag sets is_confirmed on a bag. Setting an already-confirmed bag
// again is a no-op so re-applied payment reconciliation stays safe.
func (s *Store) ConfirmBag(ctx context.Context, bagID int64, confirmedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE weekly_bags
		SET is_confirmed = true,
		    confirmed_at = COALESCE(confirmed_at, $1),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2`,
		confirmedAt, bagID)
	return err
}

// UnconfirmBag clears the confirmation on a bag
func (s *Store) UnconfirmBag(ctx context.Context, bagID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE weekly_bags
		SET is_confirmed = false,
		    confirmed_at = NULL,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1`,
		bagID)
	return err
}

// AddBagItem inserts an item with its price snapshot and bumps the bag's
// totals by the line amount.
func (s *Store) AddBagItem(ctx context.Context, item *models.WeeklyBagItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO weekly_bag_items (weekly_bag_id, product_id, quantity, price_at_time, item_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if err := tx.GetContext(ctx, &item.ID, query,
		item.WeeklyBagID, item.ProductID, item.Quantity, item.PriceAtTime, item.ItemType); err != nil {
		return fmt.Errorf("failed to insert bag item: %w", err)
	}

	lineAmount := item.PriceAtTime * int64(item.Quantity)
	_, err = tx.ExecContext(ctx, `
		UPDATE weekly_bags
		SET subtotal = subtotal + $1,
		    total_amount = total_amount + $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2`,
		lineAmount, item.WeeklyBagID)
	if err != nil {
		return fmt.Errorf("failed to update bag totals: %w", err)
	}

	return tx.Commit()
}

// GetBagItems retrieves all items of a bag
func (s *Store) GetBagItems(ctx context.Context, bagID int64) ([]models.WeeklyBagItem, error) {
	var items []models.WeeklyBagItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM weekly_bag_items WHERE weekly_bag_id = $1 ORDER BY id", bagID)
	return items, err
}

// MarkAddonsPaid flags all currently-unpaid addon items on a bag as paid.
// Box-content items are never touched: they are covered by the subscription
// charge itself.
func (s *Store) MarkAddonsPaid(ctx context.Context, bagID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE weekly_bag_items
		SET is_paid = true
		WHERE weekly_bag_id = $1 AND item_type = $2 AND is_paid = false`,
		bagID, models.ItemTypeAddon)
	return err
}
