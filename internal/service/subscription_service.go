package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"farmbox-service/internal/models"
	"farmbox-service/internal/util"

	"go.uber.org/zap"
)

// SubscriptionService keeps the local subscription record in sync with the
// provider and performs cancellation. The provider is the source of truth;
// the local row self-heals toward it on every check.
type SubscriptionService struct {
	subs     SubscriptionStore
	provider PaymentProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(subs SubscriptionStore, provider PaymentProvider) *SubscriptionService {
	return &SubscriptionService{
		subs:     subs,
		provider: provider,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// SubscriptionStatus is the check response shape.
type SubscriptionStatus struct {
	Subscribed           bool   `json:"subscribed"`
	Status               string `json:"status"`
	StripeCustomerID     string `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string `json:"stripe_subscription_id,omitempty"`
}

// Check looks up the provider state for the user's email and mirrors it
// into the local row. No provider customer means the local row syncs to
// cancelled with cleared correlation ids; no active provider subscription
// syncs to cancelled while preserving the most recent subscription id for
// audit.
func (s *SubscriptionService) Check(ctx context.Context, userID, email string) (*SubscriptionStatus, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.Check")
	defer span.End()

	local, err := s.subs.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	customerID := ""
	if local != nil && local.StripeCustomerID.Valid {
		customerID = local.StripeCustomerID.String
	}
	if customerID == "" {
		customerID, err = s.provider.FindCustomerByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
	}

	if customerID == "" {
		sub := &models.Subscription{
			UserID: userID,
			Status: models.SubscriptionStatusCancelled,
		}
		if err := s.subs.UpsertSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to sync subscription: %w", err)
		}
		return &SubscriptionStatus{Subscribed: false, Status: models.SubscriptionStatusCancelled}, nil
	}

	providerSubs, err := s.provider.ListSubscriptions(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var activeID string
	var latestID string
	status := models.SubscriptionStatusCancelled
	for _, ps := range providerSubs {
		if latestID == "" {
			latestID = ps.ID // provider lists newest first
		}
		switch ps.Status {
		case "active", "trialing":
			activeID = ps.ID
			status = models.SubscriptionStatusActive
		case "paused":
			if activeID == "" {
				activeID = ps.ID
				status = models.SubscriptionStatusPaused
			}
		}
		if status == models.SubscriptionStatusActive {
			break
		}
	}

	subID := activeID
	if subID == "" {
		subID = latestID // keep the most recent id for audit
	}

	sub := &models.Subscription{
		UserID:               userID,
		Status:               status,
		StripeCustomerID:     nullString(customerID),
		StripeSubscriptionID: nullString(subID),
	}
	if local != nil {
		sub.CancelledAt = local.CancelledAt
		sub.CancellationReason = local.CancellationReason
	}
	if err := s.subs.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to sync subscription: %w", err)
	}

	return &SubscriptionStatus{
		Subscribed:           status == models.SubscriptionStatusActive,
		Status:               status,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: subID,
	}, nil
}

// Cancel cancels the user's subscription at the provider first, then writes
// the local cancelled row. A missing local record is not an error: the row
// is upserted as cancelled either way (self-healing sync).
func (s *SubscriptionService) Cancel(ctx context.Context, userID, email, reason string) error {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.Cancel")
	defer span.End()

	local, err := s.subs.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	customerID := ""
	subID := ""
	if local != nil {
		if local.StripeCustomerID.Valid {
			customerID = local.StripeCustomerID.String
		}
		if local.Status == models.SubscriptionStatusActive && local.StripeSubscriptionID.Valid {
			subID = local.StripeSubscriptionID.String
		}
	}

	if subID == "" {
		if customerID == "" {
			customerID, err = s.provider.FindCustomerByEmail(ctx, email)
			if err != nil {
				return err
			}
		}
		if customerID != "" {
			providerSubs, err := s.provider.ListSubscriptions(ctx, customerID)
			if err != nil {
				return err
			}
			for _, ps := range providerSubs {
				if ps.Status == "active" || ps.Status == "trialing" {
					subID = ps.ID
					break
				}
			}
		}
	}

	if subID != "" {
		if err := s.provider.CancelSubscription(ctx, subID); err != nil {
			return err
		}
		s.logger.Info("Subscription cancelled at provider",
			zap.String("user_id", userID),
			zap.String("subscription_id", subID))
	} else {
		s.logger.Info("No active provider subscription to cancel",
			zap.String("user_id", userID))
	}

	sub := &models.Subscription{
		UserID:               userID,
		Status:               models.SubscriptionStatusCancelled,
		StripeCustomerID:     nullString(customerID),
		StripeSubscriptionID: nullString(subID),
		CancelledAt:          sql.NullTime{Time: s.now(), Valid: true},
		CancellationReason:   nullString(reason),
	}
	if subID == "" && local != nil && local.StripeSubscriptionID.Valid {
		sub.StripeSubscriptionID = local.StripeSubscriptionID
	}
	if err := s.subs.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to record cancellation: %w", err)
	}

	util.SubscriptionCancelsTotal.Inc()
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
