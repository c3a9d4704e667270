package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farmbox-service/internal/models"
)

// ErrOrderNotFound is returned when no order matches the given key.
var ErrOrderNotFound = errors.New("order not found")

// ErrInvalidTransition is returned when an order status update is not
// allowed by the lifecycle state machine.
var ErrInvalidTransition = errors.New("illegal order status transition")

// CreateOrder creates a new order correlated to a provider checkout session
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, weekly_bag_id, total_amount, payment_status, status, stripe_session_id, has_active_subscription)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.UserID, order.WeeklyBagID, order.TotalAmount,
		order.PaymentStatus, order.Status, order.StripeSessionID, order.HasActiveSubscription)
}

// GetOrderByStripeSessionID retrieves the order correlated to a provider
// session. This is the only path by which payment outcomes reach an order.
func (s *Store) GetOrderByStripeSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE stripe_session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CustomerDetails are copied from the provider's session data onto a paid
// order.
type CustomerDetails struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
}

// MarkOrderPaid sets payment_status=paid / status=confirmed on an order,
// copies the customer details, and writes the outbox event in the same
// transaction. Re-running for an already-paid order only refreshes the
// customer details; an order already advanced past confirmed keeps its
// fulfillment status, so webhook redeliveries and re-verification are safe.
// When outboxEvent is nil only the order row is touched.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID int64, details CustomerDetails, outboxEvent *models.OutboxEvent) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		UPDATE orders
		SET payment_status = $1,
		    status = CASE WHEN status IN ('pending', 'confirmed') THEN $2 ELSE status END,
		    customer_name = NULLIF($3, ''),
		    customer_email = NULLIF($4, ''),
		    customer_phone = NULLIF($5, ''),
		    shipping_address = NULLIF($6, ''),
		    shipping_city = NULLIF($7, ''),
		    shipping_postal_code = NULLIF($8, ''),
		    updated_at = NOW()
		WHERE id = $9
		RETURNING *`

	var order models.Order
	err = tx.GetContext(ctx, &order, query,
		models.PaymentStatusPaid, models.OrderStatusConfirmed,
		details.Name, details.Email, details.Phone,
		details.Address, details.City, details.PostalCode, orderID)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if outboxEvent != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outbox_events (event_type, aggregate_id, payload)
			VALUES ($1, $2, $3)`,
			outboxEvent.EventType, outboxEvent.AggregateID, outboxEvent.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to write outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// UpdateOrderStatus moves an order through its fulfillment lifecycle,
// rejecting transitions the state machine does not allow.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	var current string
	err := s.db.GetContext(ctx, &current, "SELECT status FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}

	if !models.CanTransitionOrder(current, status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}
