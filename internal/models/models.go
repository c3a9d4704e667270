package models

import (
	"database/sql"
	"time"
)

// BoxSize is a catalog entity. Read-only from this service's perspective.
type BoxSize struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	DisplayName string `db:"display_name" json:"display_name"`
	BasePrice   int64  `db:"base_price" json:"base_price"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

// WeeklyBag is one bag per user per delivery week.
type WeeklyBag struct {
	ID          int64        `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"user_id"`
	WeekStart   time.Time    `db:"week_start" json:"week_start"`
	BoxSize     string       `db:"box_size" json:"box_size"`
	BoxPrice    int64        `db:"box_price" json:"box_price"`
	Subtotal    int64        `db:"subtotal" json:"subtotal"`
	DeliveryFee int64        `db:"delivery_fee" json:"delivery_fee"`
	TotalAmount int64        `db:"total_amount" json:"total_amount"`
	IsConfirmed bool         `db:"is_confirmed" json:"is_confirmed"`
	ConfirmedAt sql.NullTime `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CutoffTime  time.Time    `db:"cutoff_time" json:"cutoff_time"`
	Version     int64        `db:"version" json:"version"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// WeeklyBagItem belongs to exactly one WeeklyBag. PriceAtTime is a snapshot
// taken when the item is added and never changes afterwards.
type WeeklyBagItem struct {
	ID          int64  `db:"id" json:"id"`
	WeeklyBagID int64  `db:"weekly_bag_id" json:"weekly_bag_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	Quantity    int    `db:"quantity" json:"quantity"`
	PriceAtTime int64  `db:"price_at_time" json:"price_at_time"`
	ItemType    string `db:"item_type" json:"item_type"`
	IsPaid      bool   `db:"is_paid" json:"is_paid"`
}

// Order is created at checkout time and correlated to the payment provider
// session via StripeSessionID.
type Order struct {
	ID                    int64          `db:"id" json:"id"`
	UserID                string         `db:"user_id" json:"user_id"`
	WeeklyBagID           sql.NullInt64  `db:"weekly_bag_id" json:"weekly_bag_id,omitempty"`
	CustomerName          sql.NullString `db:"customer_name" json:"customer_name,omitempty"`
	CustomerEmail         sql.NullString `db:"customer_email" json:"customer_email,omitempty"`
	CustomerPhone         sql.NullString `db:"customer_phone" json:"customer_phone,omitempty"`
	ShippingAddress       sql.NullString `db:"shipping_address" json:"shipping_address,omitempty"`
	ShippingCity          sql.NullString `db:"shipping_city" json:"shipping_city,omitempty"`
	ShippingPostalCode    sql.NullString `db:"shipping_postal_code" json:"shipping_postal_code,omitempty"`
	TotalAmount           int64          `db:"total_amount" json:"total_amount"`
	PaymentStatus         string         `db:"payment_status" json:"payment_status"`
	Status                string         `db:"status" json:"status"`
	StripeSessionID       string         `db:"stripe_session_id" json:"stripe_session_id"`
	HasActiveSubscription bool           `db:"has_active_subscription" json:"has_active_subscription"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// Subscription mirrors the provider's subscription state. At most one row
// per user, upserted on conflict.
type Subscription struct {
	ID                   int64          `db:"id" json:"id"`
	UserID               string         `db:"user_id" json:"user_id"`
	Status               string         `db:"status" json:"status"`
	StripeCustomerID     sql.NullString `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID sql.NullString `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	CancelledAt          sql.NullTime   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason   sql.NullString `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// Box size names
const (
	BoxSizeSmall  = "small"
	BoxSizeMedium = "medium"
	BoxSizeLarge  = "large"
)

// Bag item types
const (
	ItemTypeBox   = "box"
	ItemTypeAddon = "addon"
)

// Order payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// Order fulfillment statuses
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPreparing      = "preparing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// Subscription statuses
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPaused    = "paused"
	SubscriptionStatusCancelled = "cancelled"
)

// orderTransitions is the allowed order lifecycle. Re-entering the current
// state is always permitted so webhook redeliveries stay idempotent.
var orderTransitions = map[string][]string{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

// CanTransitionOrder reports whether an order may move from one status to
// another.
func CanTransitionOrder(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidBoxSize reports whether name is a known box size.
func ValidBoxSize(name string) bool {
	switch name {
	case BoxSizeSmall, BoxSizeMedium, BoxSizeLarge:
		return true
	}
	return false
}

// ProcessedEvent records a handled webhook event for idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
