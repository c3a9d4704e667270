package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"farmbox-service/internal/models"
	"farmbox-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutboxStore struct {
	events    []models.OutboxEvent
	processed []int64
}

func (f *fakeOutboxStore) GetUnprocessedOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var out []models.OutboxEvent
	for _, e := range f.events {
		if !e.Processed {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutboxStore) MarkOutboxEventProcessed(ctx context.Context, id int64) error {
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Processed = true
		}
	}
	f.processed = append(f.processed, id)
	return nil
}

// fakeBags covers only the calls the bag-confirm sync makes; the embedded
// interface panics on anything else.
type fakeBags struct {
	service.BagStore
	confirmed  map[int64]bool
	addonsPaid map[int64]bool
	confirmErr error
}

func newFakeBags() *fakeBags {
	return &fakeBags{confirmed: map[int64]bool{}, addonsPaid: map[int64]bool{}}
}

func (f *fakeBags) ConfirmBag(ctx context.Context, bagID int64, confirmedAt time.Time) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed[bagID] = true
	return nil
}

func (f *fakeBags) MarkAddonsPaid(ctx context.Context, bagID int64) error {
	f.addonsPaid[bagID] = true
	return nil
}

func bagConfirmEvent(t *testing.T, id, orderID, bagID int64) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(models.BagConfirmSyncPayload{OrderID: orderID, WeeklyBagID: bagID})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:          id,
		EventType:   models.OutboxTypeBagConfirmSync,
		AggregateID: "1",
		Payload:     payload,
	}
}

func TestProcessBatchAppliesBagConfirmSync(t *testing.T) {
	bags := newFakeBags()
	outbox := &fakeOutboxStore{events: []models.OutboxEvent{
		bagConfirmEvent(t, 1, 10, 42),
		bagConfirmEvent(t, 2, 11, 43),
	}}
	sync := service.NewPaymentSyncService(nil, bags, nil, nil, nil, nil)
	w := NewOutboxWorker(outbox, sync, time.Second)

	w.processBatch(context.Background())

	assert.True(t, bags.confirmed[42])
	assert.True(t, bags.confirmed[43])
	assert.True(t, bags.addonsPaid[42])
	assert.True(t, bags.addonsPaid[43])
	assert.Equal(t, []int64{1, 2}, outbox.processed)
}

func TestProcessBatchKeepsFailedEventForRetry(t *testing.T) {
	bags := newFakeBags()
	bags.confirmErr = assert.AnError
	outbox := &fakeOutboxStore{events: []models.OutboxEvent{bagConfirmEvent(t, 1, 10, 42)}}
	sync := service.NewPaymentSyncService(nil, bags, nil, nil, nil, nil)
	w := NewOutboxWorker(outbox, sync, time.Second)

	w.processBatch(context.Background())
	assert.Empty(t, outbox.processed)

	// once the store recovers the same record applies cleanly
	bags.confirmErr = nil
	w.processBatch(context.Background())
	assert.True(t, bags.confirmed[42])
	assert.Equal(t, []int64{1}, outbox.processed)
}

func TestProcessBatchSkipsUnknownEventType(t *testing.T) {
	bags := newFakeBags()
	outbox := &fakeOutboxStore{events: []models.OutboxEvent{
		{ID: 1, EventType: "something.else", Payload: json.RawMessage(`{}`)},
	}}
	sync := service.NewPaymentSyncService(nil, bags, nil, nil, nil, nil)
	w := NewOutboxWorker(outbox, sync, time.Second)

	w.processBatch(context.Background())

	assert.Empty(t, bags.confirmed)
	assert.Equal(t, []int64{1}, outbox.processed)
}
