package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Availability is the read-only stock view of one SKU.
type Availability struct {
	SKU       string `json:"sku"`
	OnHand    int    `json:"on_hand"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	UOM       string `json:"uom"`
	LowStock  bool   `json:"low_stock"`
}

// Service runs the inventory use cases. Every mutation is a
// lock, load, change, save cycle under the SKU's lock; reads take no lock.
type Service struct {
	repo      Repository
	locker    Locker
	publisher Publisher
	logger    *zap.Logger
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(repo Repository, locker Locker, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		locker:    locker,
		publisher: nopPublisher{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateItem registers a new SKU with initialQty on hand and no reservations.
func (s *Service) CreateItem(ctx context.Context, rawSKU string, initialQty int, uom string, minQty int) (*Item, error) {
	const op = "create item"
	sku, err := NewSKU(rawSKU)
	if err != nil {
		return nil, err
	}
	onHand, err := NewQuantity(initialQty, uom)
	if err != nil {
		return nil, err
	}
	threshold, err := NewThreshold(minQty)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, op, sku)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, ioFailure(op, err)
	}
	if existing != nil {
		return nil, newError(KindAlreadyExists, op, "item with sku "+sku.String()+" already exists")
	}

	item := NewItem(sku, onHand, threshold)
	return s.commit(ctx, op, item)
}

func (s *Service) GetItem(ctx context.Context, rawSKU string) (*Item, error) {
	sku, err := NewSKU(rawSKU)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, "get item", sku)
}

func (s *Service) ListItems(ctx context.Context) ([]*Item, error) {
	items, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, ioFailure("list items", err)
	}
	return items, nil
}

func (s *Service) SetThreshold(ctx context.Context, rawSKU string, minQty int) (*Item, error) {
	threshold, err := NewThreshold(minQty)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "set threshold", rawSKU, func(item *Item) error {
		item.SetThreshold(threshold)
		return nil
	})
}

func (s *Service) IncreaseStock(ctx context.Context, rawSKU string, qty int, reason string) (*Item, error) {
	if reason == "" {
		reason = DefaultIncreaseReason
	}
	return s.mutate(ctx, "increase stock", rawSKU, func(item *Item) error {
		q, err := NewQuantity(qty, item.OnHand().UOM())
		if err != nil {
			return err
		}
		return item.Increase(q, reason)
	})
}

func (s *Service) DecreaseStock(ctx context.Context, rawSKU string, qty int, reason string) (*Item, error) {
	if reason == "" {
		reason = DefaultDecreaseReason
	}
	return s.mutate(ctx, "decrease stock", rawSKU, func(item *Item) error {
		q, err := NewQuantity(qty, item.OnHand().UOM())
		if err != nil {
			return err
		}
		return item.Decrease(q, reason)
	})
}

// AdjustStock applies a signed correction. A zero delta still resolves the
// SKU but leaves the item untouched.
func (s *Service) AdjustStock(ctx context.Context, rawSKU string, delta int, reason string) (*Item, error) {
	if reason == "" {
		reason = DefaultAdjustReason
	}
	return s.mutate(ctx, "adjust stock", rawSKU, func(item *Item) error {
		return item.Adjust(delta, reason)
	})
}

func (s *Service) ReserveStock(ctx context.Context, rawSKU, orderID string, qty int) (*Item, Reservation, error) {
	var reservation Reservation
	item, err := s.mutate(ctx, "reserve stock", rawSKU, func(item *Item) error {
		q, err := NewQuantity(qty, item.OnHand().UOM())
		if err != nil {
			return err
		}
		reservation, err = item.Reserve(orderID, q)
		return err
	})
	if err != nil {
		return nil, Reservation{}, err
	}
	return item, reservation, nil
}

func (s *Service) ReleaseReservation(ctx context.Context, rawSKU, reservationID string) (*Item, error) {
	return s.mutate(ctx, "release reservation", rawSKU, func(item *Item) error {
		return item.Release(reservationID)
	})
}

func (s *Service) ListReservations(ctx context.Context, rawSKU string) ([]Reservation, error) {
	item, err := s.GetItem(ctx, rawSKU)
	if err != nil {
		return nil, err
	}
	return item.Reservations(), nil
}

func (s *Service) GetAvailability(ctx context.Context, rawSKU string) (Availability, error) {
	item, err := s.GetItem(ctx, rawSKU)
	if err != nil {
		return Availability{}, err
	}
	return AvailabilityOf(item), nil
}

// GetLowStockItems keeps the repository's iteration order.
func (s *Service) GetLowStockItems(ctx context.Context) ([]*Item, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]*Item, 0, len(items))
	for _, item := range items {
		if item.IsLowStock() {
			low = append(low, item)
		}
	}
	return low, nil
}

func AvailabilityOf(item *Item) Availability {
	return Availability{
		SKU:       item.SKU().String(),
		OnHand:    item.OnHand().Amount(),
		Reserved:  item.Reserved().Amount(),
		Available: item.Available().Amount(),
		UOM:       item.OnHand().UOM(),
		LowStock:  item.IsLowStock(),
	}
}

func (s *Service) mutate(ctx context.Context, op, rawSKU string, change func(*Item) error) (*Item, error) {
	sku, err := NewSKU(rawSKU)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, op, sku)
	if err != nil {
		return nil, err
	}
	defer unlock()

	item, err := s.load(ctx, op, sku)
	if err != nil {
		return nil, err
	}
	if err := change(item); err != nil {
		s.logger.Debug("inventory change rejected",
			zap.String("op", op),
			zap.String("sku", sku.String()),
			zap.Stringer("kind", KindOf(err)),
			zap.Error(err),
		)
		return nil, err
	}
	if len(item.Events()) == 0 {
		return item, nil
	}
	return s.commit(ctx, op, item)
}

// commit saves the item, then publishes its events. The save is the
// operation's outcome; a publish failure is logged and not returned.
func (s *Service) commit(ctx context.Context, op string, item *Item) (*Item, error) {
	events := item.Events()
	saved, err := s.repo.Save(ctx, item)
	if err != nil {
		return nil, ioFailure(op, err)
	}
	item.ClearEvents()
	saved.ClearEvents()

	s.logger.Debug("inventory item saved",
		zap.String("op", op),
		zap.String("sku", saved.SKU().String()),
		zap.Int("on_hand", saved.OnHand().Amount()),
		zap.Int("reserved", saved.Reserved().Amount()),
		zap.Int("version", saved.Version()),
	)

	if err := s.publisher.Publish(ctx, events); err != nil {
		s.logger.Error("failed to publish inventory events",
			zap.String("op", op),
			zap.String("sku", saved.SKU().String()),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
	return saved, nil
}

func (s *Service) load(ctx context.Context, op string, sku SKU) (*Item, error) {
	item, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, ioFailure(op, err)
	}
	if item == nil {
		return nil, newError(KindNotFound, op, "item not found: "+sku.String())
	}
	return item, nil
}

func (s *Service) lock(ctx context.Context, op string, sku SKU) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "inventory:"+sku.String())
	switch {
	case err == nil:
	case errors.Is(err, ErrLockNotAcquired),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return nil, &Error{Kind: KindConflict, Op: op, Err: err}
	default:
		return nil, ioFailure(op+": lock", err)
	}
	return unlock, nil
}
