package service

import (
	"context"
	"time"

	"farmbox-service/internal/models"
	"farmbox-service/internal/store"
	"farmbox-service/internal/stripeclient"
)

// BagStore is the persistence surface of the bag workflow.
// *store.Store satisfies it.
type BagStore interface {
	GetBoxSizes(ctx context.Context) ([]models.BoxSize, error)
	GetBoxSizeByName(ctx context.Context, name string) (*models.BoxSize, error)
	GetProductPrice(ctx context.Context, productID int64) (int64, error)
	GetOrCreateCurrentBag(ctx context.Context, userID string, weekStart time.Time, boxSize string, boxPrice int64, deliveryFee int64, cutoff time.Time) (*models.WeeklyBag, error)
	GetBagByID(ctx context.Context, id int64) (*models.WeeklyBag, error)
	UpdateBoxSize(ctx context.Context, bagID int64, boxSize string, boxPrice int64, version int64) (*models.WeeklyBag, error)
	ConfirmBag(ctx context.Context, bagID int64, confirmedAt time.Time) error
	UnconfirmBag(ctx context.Context, bagID int64) error
	AddBagItem(ctx context.Context, item *models.WeeklyBagItem) error
	GetBagItems(ctx context.Context, bagID int64) ([]models.WeeklyBagItem, error)
	MarkAddonsPaid(ctx context.Context, bagID int64) error
}

// OrderStore is the persistence surface of payment reconciliation.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByStripeSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	MarkOrderPaid(ctx context.Context, orderID int64, details store.CustomerDetails, outboxEvent *models.OutboxEvent) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// SubscriptionStore is the persistence surface of the subscription sync.
type SubscriptionStore interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
}

// PaymentProvider is the hosted payment API surface.
// *stripeclient.Client satisfies it.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, p stripeclient.CreateSessionParams) (*stripeclient.Session, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripeclient.Session, error)
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]stripeclient.ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// WebhookVerifier verifies inbound webhook payloads cryptographically.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (*stripeclient.WebhookEvent, error)
}

// EventSink publishes domain events for downstream consumers.
// *broker.EventPublisher satisfies it.
type EventSink interface {
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishBagConfirmed(ctx context.Context, event *models.BagConfirmedEvent) error
	PublishBoxSizeChanged(ctx context.Context, event *models.BoxSizeChangedEvent) error
}

// DedupeCache is the fast-path webhook dedupe and reconcile-lock surface.
// *redisclient.Client satisfies it.
type DedupeCache interface {
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// CatalogCache caches the box-size catalog.
// *redisclient.Client satisfies it.
type CatalogCache interface {
	CacheBoxSizes(ctx context.Context, sizes []models.BoxSize, ttl time.Duration) error
	GetCachedBoxSizes(ctx context.Context) ([]models.BoxSize, error)
}
