package worker

import (
	"context"
	"encoding/json"
	"time"

	"farmbox-service/internal/models"
	"farmbox-service/internal/service"
	"farmbox-service/internal/util"

	"go.uber.org/zap"
)

// OutboxStore is the durable event surface the worker polls.
// *store.Store satisfies it.
type OutboxStore interface {
	GetUnprocessedOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkOutboxEventProcessed(ctx context.Context, id int64) error
}

// OutboxWorker retries the bag-confirm secondary sync from durable outbox
// records, so a crash between the order commit and the bag sync self-heals
// without another webhook delivery.
type OutboxWorker struct {
	store       OutboxStore
	paymentSync *service.PaymentSyncService
	interval    time.Duration
	batchSize   int
	logger      *zap.Logger
}

// NewOutboxWorker creates a new outbox worker
func NewOutboxWorker(store OutboxStore, paymentSync *service.PaymentSyncService, interval time.Duration) *OutboxWorker {
	return &OutboxWorker{
		store:       store,
		paymentSync: paymentSync,
		interval:    interval,
		batchSize:   100,
		logger:      util.GetLogger(),
	}
}

// Start runs the poll loop until the context is cancelled
func (w *OutboxWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting outbox worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) {
	events, err := w.store.GetUnprocessedOutboxEvents(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := w.handleEvent(ctx, &event); err != nil {
			w.logger.Warn("Outbox event apply failed, will retry",
				zap.Int64("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			continue
		}

		if err := w.store.MarkOutboxEventProcessed(ctx, event.ID); err != nil {
			w.logger.Error("Failed to mark outbox event processed",
				zap.Int64("event_id", event.ID),
				zap.Error(err))
		}
	}
}

func (w *OutboxWorker) handleEvent(ctx context.Context, event *models.OutboxEvent) error {
	switch event.EventType {
	case models.OutboxTypeBagConfirmSync:
		var payload models.BagConfirmSyncPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		util.OutboxRetriesTotal.Inc()
		return w.paymentSync.ApplyBagConfirmSync(ctx, payload.WeeklyBagID, "outbox")
	default:
		w.logger.Warn("Unhandled outbox event type", zap.String("event_type", event.EventType))
		return nil
	}
}
