package service

import (
	"context"
	"fmt"
	"strings"

	"farmbox-service/internal/models"
	"farmbox-service/internal/stripeclient"
	"farmbox-service/internal/util"

	"go.uber.org/zap"
)

// CheckoutConfig maps box sizes to provider price ids.
type CheckoutConfig struct {
	PriceIDSmall  string
	PriceIDMedium string
	PriceIDLarge  string
	FrontendURL   string
}

// PriceID resolves a box size to its provider price id. Unknown sizes fall
// back to medium rather than failing.
func (c CheckoutConfig) PriceID(boxSize string) string {
	switch boxSize {
	case models.BoxSizeSmall:
		return c.PriceIDSmall
	case models.BoxSizeLarge:
		return c.PriceIDLarge
	default:
		return c.PriceIDMedium
	}
}

// CheckoutService starts hosted checkout sessions and records the pending
// order correlated to them.
type CheckoutService struct {
	orders   OrderStore
	bags     *BagService
	provider PaymentProvider
	cfg      CheckoutConfig
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(orders OrderStore, bags *BagService, provider PaymentProvider, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		bags:     bags,
		provider: provider,
		cfg:      cfg,
		logger:   util.GetLogger(),
	}
}

// CreateSessionResponse carries the redirect URL to the hosted checkout.
type CreateSessionResponse struct {
	URL string `json:"url"`
}

// CreateSession creates a subscription-mode checkout session for the user's
// current weekly bag. An absent or unknown box size defaults to medium.
func (s *CheckoutService) CreateSession(ctx context.Context, userID, email, boxSize string) (*CreateSessionResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateSession")
	defer span.End()

	size := NormalizeBoxSize(boxSize)

	view, err := s.bags.CurrentBag(ctx, userID, size)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare weekly bag: %w", err)
	}
	wb := view.Bag

	frontend := strings.TrimRight(s.cfg.FrontendURL, "/")
	sess, err := s.provider.CreateCheckoutSession(ctx, stripeclient.CreateSessionParams{
		PriceID:       s.cfg.PriceID(size),
		CustomerEmail: email,
		SuccessURL:    frontend + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     frontend + "/checkout/cancel",
		Metadata: map[string]string{
			"user_id":  userID,
			"box_size": size,
		},
	})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:                userID,
		WeeklyBagID:           nullInt64(wb.ID),
		TotalAmount:           wb.TotalAmount,
		PaymentStatus:         models.PaymentStatusPending,
		Status:                models.OrderStatusPending,
		StripeSessionID:       sess.ID,
		HasActiveSubscription: true,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.CheckoutSessionsTotal.WithLabelValues(size).Inc()
	s.logger.Info("Checkout session created",
		zap.Int64("order_id", order.ID),
		zap.String("session_id", sess.ID),
		zap.String("box_size", size))

	return &CreateSessionResponse{URL: sess.URL}, nil
}
