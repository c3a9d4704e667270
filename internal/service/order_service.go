package service

import (
	"context"
	"fmt"

	"farmbox-service/internal/models"
	"farmbox-service/internal/util"

	"go.uber.org/zap"
)

// OrderService serves order history and fulfillment status updates. Payment
// state is owned by the payment sync; this service only moves orders through
// the fulfillment lifecycle.
type OrderService struct {
	orders OrderStore
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orders OrderStore) *OrderService {
	return &OrderService{
		orders: orders,
		logger: util.GetLogger(),
	}
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return orders, nil
}

// AdvanceOrder moves an order to the given fulfillment status. The store
// rejects transitions the lifecycle state machine does not allow.
func (s *OrderService) AdvanceOrder(ctx context.Context, orderID int64, status string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.AdvanceOrder")
	defer span.End()

	if err := s.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return err
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status))
	return nil
}
