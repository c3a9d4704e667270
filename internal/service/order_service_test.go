package service

import (
	"context"
	"testing"

	"farmbox-service/internal/models"
	"farmbox-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, fs *fakeStore, userID, sessionID, status string) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:          userID,
		TotalAmount:     7500,
		PaymentStatus:   models.PaymentStatusPending,
		Status:          status,
		StripeSessionID: sessionID,
	}
	require.NoError(t, fs.CreateOrder(context.Background(), order))
	return order
}

func TestListOrders(t *testing.T) {
	fs := newFakeStore()
	svc := NewOrderService(fs)
	ctx := context.Background()

	seedOrder(t, fs, "user-1", "cs_a", models.OrderStatusPending)
	seedOrder(t, fs, "user-1", "cs_b", models.OrderStatusConfirmed)
	seedOrder(t, fs, "user-2", "cs_c", models.OrderStatusPending)

	orders, err := svc.ListOrders(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = svc.ListOrders(ctx, "user-3")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestAdvanceOrder(t *testing.T) {
	fs := newFakeStore()
	svc := NewOrderService(fs)
	ctx := context.Background()

	order := seedOrder(t, fs, "user-1", "cs_a", models.OrderStatusConfirmed)

	require.NoError(t, svc.AdvanceOrder(ctx, order.ID, models.OrderStatusPreparing))
	require.NoError(t, svc.AdvanceOrder(ctx, order.ID, models.OrderStatusOutForDelivery))
	require.NoError(t, svc.AdvanceOrder(ctx, order.ID, models.OrderStatusDelivered))

	assert.Equal(t, models.OrderStatusDelivered, fs.orders[order.ID].Status)
}

func TestAdvanceOrderRejectsIllegalTransition(t *testing.T) {
	fs := newFakeStore()
	svc := NewOrderService(fs)
	ctx := context.Background()

	order := seedOrder(t, fs, "user-1", "cs_a", models.OrderStatusPending)

	err := svc.AdvanceOrder(ctx, order.ID, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusPending, fs.orders[order.ID].Status)
}

func TestAdvanceOrderNotFound(t *testing.T) {
	fs := newFakeStore()
	svc := NewOrderService(fs)

	err := svc.AdvanceOrder(context.Background(), 999, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
}
