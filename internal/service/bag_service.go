package service

import (
	"context"
	"fmt"
	"time"

	"farmbox-service/internal/bag"
	"farmbox-service/internal/models"
	"farmbox-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BagConfig carries the weekly schedule and pricing knobs.
type BagConfig struct {
	DeliveryFee   int64
	CutoffWeekday time.Weekday
	CutoffHour    int
}

// BagService handles the weekly bag workflow: get-or-create, box-size
// changes, confirmation and items. Every mutation re-derives the lock
// state server-side; the UI gate alone is not trusted.
type BagService struct {
	store  BagStore
	events EventSink
	cache  CatalogCache
	cfg    BagConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewBagService creates a new bag service
func NewBagService(store BagStore, events EventSink, cache CatalogCache, cfg BagConfig) *BagService {
	return &BagService{
		store:  store,
		events: events,
		cache:  cache,
		cfg:    cfg,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

const catalogCacheTTL = 5 * time.Minute

// ListBoxSizes returns the active box-size catalog, served from cache when
// warm. Cache failures fall through to the database.
func (s *BagService) ListBoxSizes(ctx context.Context) ([]models.BoxSize, error) {
	ctx, span := util.StartSpan(ctx, "BagService.ListBoxSizes")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetCachedBoxSizes(ctx)
		if err != nil {
			s.logger.Warn("Box-size cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	sizes, err := s.store.GetBoxSizes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load box sizes: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheBoxSizes(ctx, sizes, catalogCacheTTL); err != nil {
			s.logger.Warn("Box-size cache write failed", zap.Error(err))
		}
	}
	return sizes, nil
}

// BagView is the bag payload handed to clients: the row, its items, and the
// derived lock state so clients never re-implement the cutoff rule.
type BagView struct {
	Bag       *models.WeeklyBag      `json:"bag"`
	Items     []models.WeeklyBagItem `json:"items"`
	LockState bag.LockState          `json:"lock_state"`
	Countdown bag.Countdown          `json:"countdown"`
	IsLocked  bool                   `json:"is_locked"`
}

// ChangeBoxSizeRequest is a box-size change attempt. Version is the bag
// version the client read; Confirm acknowledges the confirmation step when
// the decision table demands one.
type ChangeBoxSizeRequest struct {
	BoxSize string `json:"box_size" binding:"required"`
	Version int64  `json:"version"`
	Confirm bool   `json:"confirm"`
}

// ChangeBoxSizeResult reports the outcome of a change attempt.
type ChangeBoxSizeResult struct {
	Decision             bag.ChangeDecision `json:"decision"`
	Applied              bool               `json:"applied"`
	RequiresConfirmation bool               `json:"requires_confirmation"`
	PriceDelta           int64              `json:"price_delta"`
	Bag                  *BagView           `json:"bag,omitempty"`
}

// NormalizeBoxSize maps unknown or absent sizes to the medium default.
func NormalizeBoxSize(size string) string {
	if !models.ValidBoxSize(size) {
		return models.BoxSizeMedium
	}
	return size
}

// CurrentBag returns this week's bag for the user, creating it when absent.
// Idempotent per (user, week); a requested size only affects creation.
func (s *BagService) CurrentBag(ctx context.Context, userID, requestedSize string) (*BagView, error) {
	ctx, span := util.StartSpan(ctx, "BagService.CurrentBag")
	defer span.End()

	size := NormalizeBoxSize(requestedSize)
	boxSize, err := s.store.GetBoxSizeByName(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve box size: %w", err)
	}

	now := s.now()
	weekStart := bag.WeekStart(now)
	cutoff := bag.NextCutoff(now, s.cfg.CutoffWeekday, s.cfg.CutoffHour)

	wb, err := s.store.GetOrCreateCurrentBag(ctx, userID, weekStart, size, boxSize.BasePrice, s.cfg.DeliveryFee, cutoff)
	if err != nil {
		return nil, err
	}

	return s.buildView(ctx, wb)
}

// ChangeBoxSize runs the box-size change decision table and applies the
// change with optimistic concurrency. An upgrade, or any change to a
// confirmed bag, needs req.Confirm; a downgrade on an unconfirmed bag
// applies immediately. A bag past its cutoff rejects all changes.
func (s *BagService) ChangeBoxSize(ctx context.Context, userID string, req ChangeBoxSizeRequest) (*ChangeBoxSizeResult, error) {
	ctx, span := util.StartSpan(ctx, "BagService.ChangeBoxSize")
	defer span.End()

	if !models.ValidBoxSize(req.BoxSize) {
		return nil, ErrInvalidBoxSize
	}

	view, err := s.CurrentBag(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	wb := view.Bag

	now := s.now()
	if !wb.IsConfirmed && !now.Before(wb.CutoffTime) {
		return nil, ErrBagLocked
	}

	selected, err := s.store.GetBoxSizeByName(ctx, req.BoxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve box size: %w", err)
	}

	decision := bag.DecideChange(wb.BoxSize, req.BoxSize, wb.BoxPrice, selected.BasePrice, wb.IsConfirmed)
	util.BoxSizeChangesTotal.WithLabelValues(string(decision)).Inc()

	switch decision {
	case bag.ChangeNoop:
		return &ChangeBoxSizeResult{Decision: decision, Bag: view}, nil

	case bag.ChangeNeedsConfirmation:
		if !req.Confirm {
			return &ChangeBoxSizeResult{
				Decision:             decision,
				RequiresConfirmation: true,
				PriceDelta:           selected.BasePrice - wb.BoxPrice,
				Bag:                  view,
			}, nil
		}
	}

	version := req.Version
	if version == 0 {
		version = wb.Version
	}

	oldSize := wb.BoxSize
	updated, err := s.store.UpdateBoxSize(ctx, wb.ID, req.BoxSize, selected.BasePrice, version)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Box size changed",
		zap.Int64("bag_id", updated.ID),
		zap.String("old_size", oldSize),
		zap.String("new_size", updated.BoxSize))

	if s.events != nil {
		event := &models.BoxSizeChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeBoxSizeChanged,
				Timestamp: s.now(),
			},
			BagID:    updated.ID,
			UserID:   updated.UserID,
			OldSize:  oldSize,
			NewSize:  updated.BoxSize,
			NewPrice: updated.BoxPrice,
		}
		if err := s.events.PublishBoxSizeChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish BoxSizeChanged event", zap.Error(err))
		}
	}

	newView, err := s.buildView(ctx, updated)
	if err != nil {
		return nil, err
	}

	return &ChangeBoxSizeResult{
		Decision:   decision,
		Applied:    true,
		PriceDelta: updated.BoxPrice - wb.BoxPrice,
		Bag:        newView,
	}, nil
}

// Confirm sets the confirmed flag on this week's bag. The gate is one-way
// before the cutoff: once the cutoff passes an unconfirmed bag stays
// unconfirmed (the bag locks, it never auto-confirms). Re-confirming is a
// no-op.
func (s *BagService) Confirm(ctx context.Context, userID string) (*BagView, error) {
	ctx, span := util.StartSpan(ctx, "BagService.Confirm")
	defer span.End()

	view, err := s.CurrentBag(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	wb := view.Bag

	if wb.IsConfirmed {
		return view, nil
	}
	if !s.now().Before(wb.CutoffTime) {
		return nil, ErrBagLocked
	}

	if err := s.store.ConfirmBag(ctx, wb.ID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to confirm bag: %w", err)
	}
	util.BagConfirmationsTotal.WithLabelValues("user").Inc()

	if s.events != nil {
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

	updated, err := s.store.GetBagByID(ctx, wb.ID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, updated)
}

// Unconfirm clears the confirmation on this week's bag, reopening it for
// edits. Only allowed before the cutoff.
func (s *BagService) Unconfirm(ctx context.Context, userID string) (*BagView, error) {
	ctx, span := util.StartSpan(ctx, "BagService.Unconfirm")
	defer span.End()

	view, err := s.CurrentBag(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	wb := view.Bag

	if !wb.IsConfirmed {
		return view, nil
	}
	if !s.now().Before(wb.CutoffTime) {
		return nil, ErrBagLocked
	}

	if err := s.store.UnconfirmBag(ctx, wb.ID); err != nil {
		return nil, fmt.Errorf("failed to unconfirm bag: %w", err)
	}

	updated, err := s.store.GetBagByID(ctx, wb.ID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, updated)
}

// AddItemRequest adds a product to this week's bag.
type AddItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	ItemType  string `json:"item_type" binding:"required"`
}

// AddItem adds an item, snapshotting the catalog price at this moment.
// Later catalog changes never retroactively alter price_at_time.
func (s *BagService) AddItem(ctx context.Context, userID string, req AddItemRequest) (*BagView, error) {
	ctx, span := util.StartSpan(ctx, "BagService.AddItem")
	defer span.End()

	if req.ItemType != models.ItemTypeBox && req.ItemType != models.ItemTypeAddon {
		return nil, ErrInvalidItemType
	}

	view, err := s.CurrentBag(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	wb := view.Bag

	if bag.IsLocked(wb.CutoffTime, wb.IsConfirmed, s.now()) {
		return nil, ErrBagLocked
	}

	price, err := s.store.GetProductPrice(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	item := &models.WeeklyBagItem{
		WeeklyBagID: wb.ID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		PriceAtTime: price,
		ItemType:    req.ItemType,
	}
	if err := s.store.AddBagItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add bag item: %w", err)
	}

	updated, err := s.store.GetBagByID(ctx, wb.ID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, updated)
}

func (s *BagService) buildView(ctx context.Context, wb *models.WeeklyBag) (*BagView, error) {
	items, err := s.store.GetBagItems(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bag items: %w", err)
	}

	now := s.now()
	state, countdown := bag.DeriveLockState(wb.CutoffTime, wb.IsConfirmed, now)

	return &BagView{
		Bag:       wb,
		Items:     items,
		LockState: state,
		Countdown: countdown,
		IsLocked:  bag.IsLocked(wb.CutoffTime, wb.IsConfirmed, now),
	}, nil
}
