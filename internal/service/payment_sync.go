package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"farmbox-service/internal/models"
	"farmbox-service/internal/store"
	"farmbox-service/internal/stripeclient"
	"farmbox-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	webhookDedupeTTL = 24 * time.Hour
	reconcileLockTTL = 30 * time.Second
)

// PaymentSyncService reconciles provider payment outcomes into order, bag
// and item state. Webhook delivery and client-triggered verification both
// converge on the same apply path, and the apply path is idempotent so
// redeliveries and crash-recovery retries are safe.
type PaymentSyncService struct {
	orders   OrderStore
	bags     BagStore
	provider PaymentProvider
	verifier WebhookVerifier
	cache    DedupeCache
	events   EventSink
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentSyncService creates a new payment sync service
func NewPaymentSyncService(
	orders OrderStore,
	bags BagStore,
	provider PaymentProvider,
	verifier WebhookVerifier,
	cache DedupeCache,
	events EventSink,
) *PaymentSyncService {
	return &PaymentSyncService{
		orders:   orders,
		bags:     bags,
		provider: provider,
		verifier: verifier,
		cache:    cache,
		events:   events,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// HandleWebhook processes a raw provider webhook. The signature must verify
// before any payload content is trusted; on failure nothing is touched.
func (s *PaymentSyncService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := util.StartSpan(ctx, "PaymentSyncService.HandleWebhook")
	defer span.End()

	event, err := s.verifier.VerifyWebhook(payload, sigHeader)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("unknown", "bad_signature").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != stripeclient.EventCheckoutSessionCompleted {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}

	if s.cache != nil {
		firstSeen, err := s.cache.MarkEventSeen(ctx, event.ID, webhookDedupeTTL)
		if err != nil {
			s.logger.Warn("Webhook dedupe cache unavailable", zap.Error(err))
		} else if !firstSeen {
			util.WebhookEventsTotal.WithLabelValues(event.Type, "duplicate").Inc()
			return nil
		}
	}

	processed, err := s.orders.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "duplicate").Inc()
		return nil
	}

	if _, err := s.applyPaidSession(ctx, event.Session); err != nil {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "failed").Inc()
		return err
	}

	if err := s.orders.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
		s.logger.Error("Failed to mark event processed", zap.String("event_id", event.ID), zap.Error(err))
	}

	util.WebhookEventsTotal.WithLabelValues(event.Type, "ok").Inc()
	return nil
}

// VerifyResult is the outcome of a client-triggered verification.
type VerifyResult struct {
	Success       bool          `json:"success"`
	PaymentStatus string        `json:"payment_status,omitempty"`
	Order         *models.Order `json:"order,omitempty"`
}

// VerifySession re-fetches the session from the provider (never trusting
// client-supplied status) and reconciles it when paid.
func (s *PaymentSyncService) VerifySession(ctx context.Context, sessionID string) (*VerifyResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentSyncService.VerifySession")
	defer span.End()

	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	if s.cache != nil {
		if ok, err := s.cache.AcquireLock(ctx, "reconcile:"+sessionID, reconcileLockTTL); err == nil && ok {
			defer func() {
				if err := s.cache.ReleaseLock(context.Background(), "reconcile:"+sessionID); err != nil {
					s.logger.Warn("Failed to release reconcile lock", zap.Error(err))
				}
			}()
		}
	}

	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		util.PaymentsVerifiedTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if sess.PaymentStatus != "paid" {
		util.PaymentsVerifiedTotal.WithLabelValues("unpaid").Inc()
		return &VerifyResult{Success: false, PaymentStatus: sess.PaymentStatus}, nil
	}

	order, err := s.applyPaidSession(ctx, sess)
	if err != nil {
		util.PaymentsVerifiedTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	util.PaymentsVerifiedTotal.WithLabelValues("paid").Inc()
	return &VerifyResult{Success: true, PaymentStatus: sess.PaymentStatus, Order: order}, nil
}

// applyPaidSession is the single reconciliation path both entry points use.
// The order update and the outbox record commit together; the bag sync that
// follows is best-effort and retried by the outbox worker when it fails.
func (s *PaymentSyncService) applyPaidSession(ctx context.Context, sess *stripeclient.Session) (*models.Order, error) {
	order, err := s.orders.GetOrderByStripeSessionID(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	var outboxEvent *models.OutboxEvent
	if order.WeeklyBagID.Valid && order.HasActiveSubscription {
		payload, err := json.Marshal(models.BagConfirmSyncPayload{
			OrderID:     order.ID,
			WeeklyBagID: order.WeeklyBagID.Int64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
		}
		outboxEvent = &models.OutboxEvent{
			EventType:   models.OutboxTypeBagConfirmSync,
			AggregateID: strconv.FormatInt(order.ID, 10),
			Payload:     payload,
		}
	}

	wasPaid := order.PaymentStatus == models.PaymentStatusPaid

	details := store.CustomerDetails{
		Name:       sess.CustomerName,
		Email:      sess.CustomerEmail,
		Phone:      sess.CustomerPhone,
		Address:    sess.ShippingLine,
		City:       sess.ShippingCity,
		PostalCode: sess.ShippingPostal,
	}

	updated, err := s.orders.MarkOrderPaid(ctx, order.ID, details, outboxEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if !wasPaid {
		util.OrdersPaidTotal.Inc()
	}

	s.logger.Info("Order reconciled as paid",
		zap.Int64("order_id", updated.ID),
		zap.String("session_id", sess.ID))

	if s.events != nil {
		event := &models.OrderPaidEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPaid,
				Timestamp: s.now(),
			},
			OrderID:         updated.ID,
			UserID:          updated.UserID,
			StripeSessionID: updated.StripeSessionID,
			TotalAmount:     updated.TotalAmount,
		}
		if err := s.events.PublishOrderPaid(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
		}
	}

	// Best-effort secondary sync. The order-paid state above is
	// authoritative and is not rolled back when this fails; the outbox
	// worker retries from the durable record.
	if outboxEvent != nil {
		if err := s.ApplyBagConfirmSync(ctx, order.WeeklyBagID.Int64, "payment"); err != nil {
			util.BagSyncFailuresTotal.Inc()
			s.logger.Warn("Failed to sync bag after payment, outbox will retry",
				zap.Int64("order_id", updated.ID),
				zap.Int64("bag_id", order.WeeklyBagID.Int64),
				zap.Error(err))
		}
	}

	return updated, nil
}

// ApplyBagConfirmSync confirms a bag and marks its unpaid add-ons paid.
// Safe to re-run: confirming a confirmed bag and re-flagging paid add-ons
// are both no-ops. Box-content items are never flagged; the subscription
// charge covers them.
func (s *PaymentSyncService) ApplyBagConfirmSync(ctx context.Context, bagID int64, source string) error {
	if err := s.bags.ConfirmBag(ctx, bagID, s.now()); err != nil {
		return fmt.Errorf("failed to confirm bag %d: %w", bagID, err)
	}
	util.BagConfirmationsTotal.WithLabelValues(source).Inc()

	if err := s.bags.MarkAddonsPaid(ctx, bagID); err != nil {
		return fmt.Errorf("failed to mark addons paid for bag %d: %w", bagID, err)
	}

	if s.events != nil {
		wb, err := s.bags.GetBagByID(ctx, bagID)
		if err != nil {
			s.logger.Warn("Failed to load bag for event", zap.Int64("bag_id", bagID), zap.Error(err))
			return nil
		}
		event := &models.BagConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeBagConfirmed,
				Timestamp: s.now(),
			},
			BagID:       wb.ID,
			UserID:      wb.UserID,
			BoxSize:     wb.BoxSize,
			TotalAmount: wb.TotalAmount,
		}
		if err := s.events.PublishBagConfirmed(ctx, event); err != nil {
			s.logger.Error("Failed to publish BagConfirmed event", zap.Error(err))
		}
	}
	return nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
