package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"farmbox-service/internal/models"
	"farmbox-service/internal/store"
	"farmbox-service/internal/stripeclient"
)

// fakeStore is an in-memory stand-in for *store.Store covering BagStore,
// OrderStore and SubscriptionStore.
type fakeStore struct {
	mu sync.Mutex

	boxSizes      map[string]models.BoxSize
	productPrices map[int64]int64

	bags          map[int64]*models.WeeklyBag
	bagByUserWeek map[string]int64
	items         map[int64][]*models.WeeklyBagItem

	orders         map[int64]*models.Order
	orderBySession map[string]int64

	subs map[string]*models.Subscription

	outbox    []*models.OutboxEvent
	processed map[string]bool

	nextID int64

	confirmErr error // injected failure for the best-effort sync path
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		boxSizes: map[string]models.BoxSize{
			"small":  {ID: 1, Name: "small", DisplayName: "Small Box", BasePrice: 5000, IsActive: true},
			"medium": {ID: 2, Name: "medium", DisplayName: "Medium Box", BasePrice: 7000, IsActive: true},
			"large":  {ID: 3, Name: "large", DisplayName: "Large Box", BasePrice: 9000, IsActive: true},
		},
		productPrices:  map[int64]int64{101: 350, 102: 420},
		bags:           map[int64]*models.WeeklyBag{},
		bagByUserWeek:  map[string]int64{},
		items:          map[int64][]*models.WeeklyBagItem{},
		orders:         map[int64]*models.Order{},
		orderBySession: map[string]int64{},
		subs:           map[string]*models.Subscription{},
		processed:      map[string]bool{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) GetBoxSizes(ctx context.Context) ([]models.BoxSize, error) {
	var out []models.BoxSize
	for _, bs := range f.boxSizes {
		out = append(out, bs)
	}
	return out, nil
}

func (f *fakeStore) GetBoxSizeByName(ctx context.Context, name string) (*models.BoxSize, error) {
	bs, ok := f.boxSizes[name]
	if !ok {
		return nil, fmt.Errorf("box size not found: %s", name)
	}
	return &bs, nil
}

func (f *fakeStore) GetProductPrice(ctx context.Context, productID int64) (int64, error) {
	price, ok := f.productPrices[productID]
	if !ok {
		return 0, fmt.Errorf("product not found: %d", productID)
	}
	return price, nil
}

func (f *fakeStore) GetOrCreateCurrentBag(ctx context.Context, userID string, weekStart time.Time, boxSize string, boxPrice int64, deliveryFee int64, cutoff time.Time) (*models.WeeklyBag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := userID + "|" + weekStart.Format(time.RFC3339)
	if id, ok := f.bagByUserWeek[key]; ok {
		b := *f.bags[id]
		return &b, nil
	}

	wb := &models.WeeklyBag{
		ID:          f.id(),
		UserID:      userID,
		WeekStart:   weekStart,
		BoxSize:     boxSize,
		BoxPrice:    boxPrice,
		Subtotal:    boxPrice,
		DeliveryFee: deliveryFee,
		TotalAmount: boxPrice + deliveryFee,
		CutoffTime:  cutoff,
		Version:     1,
	}
	f.bags[wb.ID] = wb
	f.bagByUserWeek[key] = wb.ID
	b := *wb
	return &b, nil
}

func (f *fakeStore) GetBagByID(ctx context.Context, id int64) (*models.WeeklyBag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wb, ok := f.bags[id]
	if !ok {
		return nil, fmt.Errorf("weekly bag not found: %d", id)
	}
	b := *wb
	return &b, nil
}

func (f *fakeStore) UpdateBoxSize(ctx context.Context, bagID int64, boxSize string, boxPrice int64, version int64) (*models.WeeklyBag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wb, ok := f.bags[bagID]
	if !ok || wb.Version != version {
		return nil, store.ErrVersionConflict
	}
	wb.Subtotal = wb.Subtotal - wb.BoxPrice + boxPrice
	wb.TotalAmount = wb.TotalAmount - wb.BoxPrice + boxPrice
	wb.BoxSize = boxSize
	wb.BoxPrice = boxPrice
	wb.Version++
	b := *wb
	return &b, nil
}

func (f *fakeStore) ConfirmBag(ctx context.Context, bagID int64, confirmedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.confirmErr != nil {
		return f.confirmErr
	}
	wb, ok := f.bags[bagID]
	if !ok {
		return fmt.Errorf("weekly bag not found: %d", bagID)
	}
	wb.IsConfirmed = true
	if !wb.ConfirmedAt.Valid {
		wb.ConfirmedAt = sql.NullTime{Time: confirmedAt, Valid: true}
	}
	wb.Version++
	return nil
}

func (f *fakeStore) UnconfirmBag(ctx context.Context, bagID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	wb, ok := f.bags[bagID]
	if !ok {
		return fmt.Errorf("weekly bag not found: %d", bagID)
	}
	wb.IsConfirmed = false
	wb.ConfirmedAt = sql.NullTime{}
	wb.Version++
	return nil
}

func (f *fakeStore) AddBagItem(ctx context.Context, item *models.WeeklyBagItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	wb, ok := f.bags[item.WeeklyBagID]
	if !ok {
		return fmt.Errorf("weekly bag not found: %d", item.WeeklyBagID)
	}
	item.ID = f.id()
	cp := *item
	f.items[item.WeeklyBagID] = append(f.items[item.WeeklyBagID], &cp)

	line := item.PriceAtTime * int64(item.Quantity)
	wb.Subtotal += line
	wb.TotalAmount += line
	wb.Version++
	return nil
}

func (f *fakeStore) GetBagItems(ctx context.Context, bagID int64) ([]models.WeeklyBagItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.WeeklyBagItem
	for _, it := range f.items[bagID] {
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeStore) MarkAddonsPaid(ctx context.Context, bagID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, it := range f.items[bagID] {
		if it.ItemType == models.ItemTypeAddon && !it.IsPaid {
			it.IsPaid = true
		}
	}
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order.ID = f.id()
	cp := *order
	f.orders[order.ID] = &cp
	f.orderBySession[order.StripeSessionID] = order.ID
	return nil
}

func (f *fakeStore) GetOrderByStripeSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.orderBySession[sessionID]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	o := *f.orders[id]
	return &o, nil
}

func (f *fakeStore) MarkOrderPaid(ctx context.Context, orderID int64, details store.CustomerDetails, outboxEvent *models.OutboxEvent) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	o.PaymentStatus = models.PaymentStatusPaid
	if o.Status == models.OrderStatusPending || o.Status == models.OrderStatusConfirmed {
		o.Status = models.OrderStatusConfirmed
	}
	o.CustomerName = sql.NullString{String: details.Name, Valid: details.Name != ""}
	o.CustomerEmail = sql.NullString{String: details.Email, Valid: details.Email != ""}
	o.CustomerPhone = sql.NullString{String: details.Phone, Valid: details.Phone != ""}
	o.ShippingAddress = sql.NullString{String: details.Address, Valid: details.Address != ""}
	o.ShippingCity = sql.NullString{String: details.City, Valid: details.City != ""}
	o.ShippingPostalCode = sql.NullString{String: details.PostalCode, Valid: details.PostalCode != ""}

	if outboxEvent != nil {
		cp := *outboxEvent
		cp.ID = f.id()
		f.outbox = append(f.outbox, &cp)
	}

	out := *o
	return &out, nil
}

func (f *fakeStore) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok {
		return store.ErrOrderNotFound
	}
	if !models.CanTransitionOrder(o.Status, status) {
		return fmt.Errorf("%w: %s to %s", store.ErrInvalidTransition, o.Status, status)
	}
	o.Status = status
	return nil
}

func (f *fakeStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[eventID], nil
}

func (f *fakeStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[eventID] = true
	return nil
}

func (f *fakeStore) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[userID]
	if !ok {
		return nil, nil
	}
	s := *sub
	return &s, nil
}

func (f *fakeStore) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.subs[sub.UserID]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = f.id()
	}
	cp := *sub
	f.subs[sub.UserID] = &cp
	return nil
}

// fakeProvider is an in-memory payment provider.
type fakeProvider struct {
	sessions       map[string]*stripeclient.Session
	customerEmails map[string]string // email -> customer id
	subscriptions  map[string][]stripeclient.ProviderSubscription
	cancelled      []string
	createdParams  []stripeclient.CreateSessionParams
	cancelErr      error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions:       map[string]*stripeclient.Session{},
		customerEmails: map[string]string{},
		subscriptions:  map[string][]stripeclient.ProviderSubscription{},
	}
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, p stripeclient.CreateSessionParams) (*stripeclient.Session, error) {
	f.createdParams = append(f.createdParams, p)
	sess := &stripeclient.Session{
		ID:            fmt.Sprintf("cs_test_%d", len(f.createdParams)),
		URL:           "https://checkout.example.com/" + p.PriceID,
		PaymentStatus: "unpaid",
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*stripeclient.Session, error) {
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, errors.New("no such session")
	}
	s := *sess
	return &s, nil
}

func (f *fakeProvider) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	return f.customerEmails[email], nil
}

func (f *fakeProvider) ListSubscriptions(ctx context.Context, customerID string) ([]stripeclient.ProviderSubscription, error) {
	return f.subscriptions[customerID], nil
}

func (f *fakeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, subscriptionID)
	for cust, subs := range f.subscriptions {
		for i := range subs {
			if subs[i].ID == subscriptionID {
				f.subscriptions[cust][i].Status = "canceled"
			}
		}
	}
	return nil
}

// fakeVerifier returns a canned verified event or a failure.
type fakeVerifier struct {
	event *stripeclient.WebhookEvent
	err   error
}

func (f *fakeVerifier) VerifyWebhook(payload []byte, sigHeader string) (*stripeclient.WebhookEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

// fakeEvents counts published domain events.
type fakeEvents struct {
	orderPaid    int
	bagConfirmed int
	sizeChanged  int
}

func (f *fakeEvents) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	f.orderPaid++
	return nil
}

func (f *fakeEvents) PublishBagConfirmed(ctx context.Context, event *models.BagConfirmedEvent) error {
	f.bagConfirmed++
	return nil
}

func (f *fakeEvents) PublishBoxSizeChanged(ctx context.Context, event *models.BoxSizeChangedEvent) error {
	f.sizeChanged++
	return nil
}

// fakeCache implements the dedupe/lock and catalog cache surfaces in memory.
type fakeCache struct {
	seen    map[string]bool
	locks   map[string]bool
	catalog []models.BoxSize
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: map[string]bool{}, locks: map[string]bool{}}
}

func (f *fakeCache) CacheBoxSizes(ctx context.Context, sizes []models.BoxSize, ttl time.Duration) error {
	f.catalog = sizes
	return nil
}

func (f *fakeCache) GetCachedBoxSizes(ctx context.Context) ([]models.BoxSize, error) {
	return f.catalog, nil
}

func (f *fakeCache) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeCache) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	if f.locks[lockKey] {
		return false, nil
	}
	f.locks[lockKey] = true
	return true, nil
}

func (f *fakeCache) ReleaseLock(ctx context.Context, lockKey string) error {
	delete(f.locks, lockKey)
	return nil
}
