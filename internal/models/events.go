package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeBagConfirmed   = "BAG_CONFIRMED"
	EventTypeBoxSizeChanged = "BOX_SIZE_CHANGED"

	OutboxTypeBagConfirmSync = "bag.confirm_sync"
)

// BaseEvent contains common fields for all published events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPaidEvent published when a provider session is reconciled as paid
type OrderPaidEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	UserID          string `json:"user_id"`
	StripeSessionID string `json:"stripe_session_id"`
	TotalAmount     int64  `json:"total_amount"`
}

// BagConfirmedEvent published when a weekly bag is confirmed
type BagConfirmedEvent struct {
	BaseEvent
	BagID       int64  `json:"bag_id"`
	UserID      string `json:"user_id"`
	BoxSize     string `json:"box_size"`
	TotalAmount int64  `json:"total_amount"`
}

// BoxSizeChangedEvent published after a box-size change is applied
type BoxSizeChangedEvent struct {
	BaseEvent
	BagID    int64  `json:"bag_id"`
	UserID   string `json:"user_id"`
	OldSize  string `json:"old_size"`
	NewSize  string `json:"new_size"`
	NewPrice int64  `json:"new_price"`
}

// OutboxEvent is a durable record of a pending secondary sync, written in
// the same transaction as the primary commit it follows.
type OutboxEvent struct {
	ID          int64           `db:"id"`
	EventType   string          `db:"event_type"`
	AggregateID string          `db:"aggregate_id"`
	Payload     json.RawMessage `db:"payload"`
	Processed   bool            `db:"processed"`
	CreatedAt   time.Time       `db:"created_at"`
	ProcessedAt sql.NullTime    `db:"processed_at"`
}

// BagConfirmSyncPayload is the payload of a bag.confirm_sync outbox event.
type BagConfirmSyncPayload struct {
	OrderID     int64 `json:"order_id"`
	WeeklyBagID int64 `json:"weekly_bag_id"`
}
