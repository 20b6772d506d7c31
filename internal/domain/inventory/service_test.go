package inventory_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/example/inventory-control/internal/infrastructure/lock"
	"github.com/example/inventory-control/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*inventory.Service, *mocks.MockRepository, *mocks.MockPublisher) {
	repo := mocks.NewMockRepository()
	publisher := mocks.NewMockPublisher()
	service := inventory.NewService(repo, lock.NewKeyedMutex(), inventory.WithPublisher(publisher))
	return service, repo, publisher
}

type failingLocker struct{ err error }

func (f failingLocker) Lock(context.Context, string) (func(), error) { return nil, f.err }

// ============================================
// CreateItem
// ============================================

func TestService_CreateItem(t *testing.T) {
	service, repo, publisher := newTestService()
	ctx := context.Background()

	item, err := service.CreateItem(ctx, " A01 ", 10, "", 3)

	require.NoError(t, err)
	assert.Equal(t, "A01", item.SKU().String())
	assert.Equal(t, 10, item.OnHand().Amount())
	assert.Equal(t, inventory.DefaultUOM, item.OnHand().UOM())
	assert.Equal(t, 3, item.Threshold().MinQty())
	assert.Equal(t, 1, item.Version())
	assert.Empty(t, item.Moves(), "creation records no move")
	assert.Equal(t, 1, repo.SaveCount())
	assert.Equal(t, []string{inventory.EventItemCreated}, publisher.EventTypes())
}

func TestService_CreateItem_DuplicateSKU(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	_, err = service.CreateItem(ctx, "A01", 5, "pcs", 0)

	assert.ErrorIs(t, err, inventory.ErrAlreadyExists)
	assert.Equal(t, 1, repo.SaveCount())
}

func TestService_CreateItem_InvalidInput(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		sku    string
		qty    int
		minQty int
	}{
		{"empty sku", "  ", 1, 0},
		{"negative quantity", "A01", -1, 0},
		{"negative threshold", "A01", 1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateItem(ctx, tt.sku, tt.qty, "pcs", tt.minQty)
			assert.ErrorIs(t, err, inventory.ErrInvalidValue)
		})
	}
	assert.Equal(t, 0, repo.SaveCount())
}

// ============================================
// Stock changes
// ============================================

func TestService_IncreaseDecrease(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	item, err := service.IncreaseStock(ctx, "A01", 5, "")
	require.NoError(t, err)
	assert.Equal(t, 15, item.OnHand().Amount())
	assert.Equal(t, inventory.DefaultIncreaseReason, item.Moves()[0].Reason)

	item, err = service.DecreaseStock(ctx, "A01", 3, "SCRAP")
	require.NoError(t, err)
	assert.Equal(t, 12, item.OnHand().Amount())
	assert.Equal(t, "SCRAP", item.Moves()[1].Reason)
}

func TestService_DecreaseInsufficient(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 3, "pcs", 0)
	require.NoError(t, err)

	_, err = service.DecreaseStock(ctx, "A01", 5, "")

	assert.ErrorIs(t, err, inventory.ErrInsufficientAvailable)
	item, err := service.GetItem(ctx, "A01")
	require.NoError(t, err)
	assert.Equal(t, 3, item.OnHand().Amount())
	assert.Empty(t, item.Moves())
	assert.Equal(t, 1, repo.SaveCount())
}

func TestService_NegativeQuantity(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 3, "pcs", 0)
	require.NoError(t, err)

	_, err = service.IncreaseStock(ctx, "A01", -1, "")
	assert.ErrorIs(t, err, inventory.ErrInvalidValue)

	_, _, err = service.ReserveStock(ctx, "A01", "ORD1", -1)
	assert.ErrorIs(t, err, inventory.ErrInvalidValue)
}

func TestService_UnknownSKU(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.IncreaseStock(ctx, "missing", 1, "")
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	_, err = service.GetAvailability(ctx, "missing")
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	_, err = service.ReleaseReservation(ctx, "missing", "r1")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestService_AdjustStock(t *testing.T) {
	service, repo, publisher := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	item, err := service.AdjustStock(ctx, "A01", 0, "")
	require.NoError(t, err)
	assert.Equal(t, 10, item.OnHand().Amount())
	assert.Empty(t, item.Moves())
	assert.Equal(t, 1, repo.SaveCount(), "zero adjust is not saved")

	item, err = service.AdjustStock(ctx, "A01", 5, "")
	require.NoError(t, err)
	assert.Equal(t, 15, item.OnHand().Amount())
	moves := item.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, inventory.MoveAdjust, moves[0].Kind)
	assert.Equal(t, 5, moves[0].Qty.Amount())
	assert.Equal(t, inventory.DefaultAdjustReason, moves[0].Reason)

	_, err = service.AdjustStock(ctx, "A01", -16, "")
	assert.ErrorIs(t, err, inventory.ErrInsufficientOnHand)

	assert.Equal(t, []string{inventory.EventItemCreated, inventory.EventStockAdjusted}, publisher.EventTypes())
}

func TestService_SetThreshold(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	item, err := service.SetThreshold(ctx, "A01", 11)
	require.NoError(t, err)
	assert.True(t, item.IsLowStock())

	_, err = service.SetThreshold(ctx, "A01", -1)
	assert.ErrorIs(t, err, inventory.ErrInvalidValue)
}

// ============================================
// Reservations
// ============================================

func TestService_ReserveAndRelease(t *testing.T) {
	service, _, publisher := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	item, res, err := service.ReserveStock(ctx, "A01", "ORD1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Reserved().Amount())
	assert.Equal(t, "ORD1", res.OrderID)

	listed, err := service.ListReservations(ctx, "A01")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, res.ID, listed[0].ID)

	item, err = service.ReleaseReservation(ctx, "A01", res.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Reserved().Amount())
	assert.Empty(t, item.Reservations())

	_, err = service.ReleaseReservation(ctx, "A01", res.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	assert.Equal(t, []string{
		inventory.EventItemCreated,
		inventory.EventStockReserved,
		inventory.EventReservationReleased,
	}, publisher.EventTypes())
}

func TestService_ConcurrentReserveRace(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, _, errs[i] = service.ReserveStock(ctx, "A01", "ORD", 10)
		}(i)
	}
	close(start)
	wg.Wait()

	successes, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, inventory.ErrInsufficientAvailable):
			insufficient++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	item, err := service.GetItem(ctx, "A01")
	require.NoError(t, err)
	assert.Equal(t, 10, item.Reserved().Amount())
	assert.Len(t, item.Reservations(), 1)
}

// ============================================
// Queries
// ============================================

func TestService_EndToEnd(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 3)
	require.NoError(t, err)

	_, _, err = service.ReserveStock(ctx, "A01", "ORD1", 3)
	require.NoError(t, err)

	avail, err := service.GetAvailability(ctx, "A01")
	require.NoError(t, err)
	assert.Equal(t, inventory.Availability{
		SKU: "A01", OnHand: 10, Reserved: 3, Available: 7, UOM: "pcs", LowStock: false,
	}, avail)

	_, err = service.DecreaseStock(ctx, "A01", 5, "")
	require.NoError(t, err)

	avail, err = service.GetAvailability(ctx, "A01")
	require.NoError(t, err)
	assert.Equal(t, 5, avail.OnHand)
	assert.Equal(t, 2, avail.Available)
	assert.True(t, avail.LowStock)

	low, err := service.GetLowStockItems(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "A01", low[0].SKU().String())
}

func TestService_GetLowStockItems_KeepsOrder(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	for _, sku := range []string{"C", "A", "B"} {
		_, err := service.CreateItem(ctx, sku, 1, "pcs", 5)
		require.NoError(t, err)
	}
	_, err := service.CreateItem(ctx, "D", 10, "pcs", 5)
	require.NoError(t, err)

	low, err := service.GetLowStockItems(ctx)
	require.NoError(t, err)

	skus := make([]string, 0, len(low))
	for _, item := range low {
		skus = append(skus, item.SKU().String())
	}
	assert.Equal(t, []string{"C", "A", "B"}, skus)
}

// ============================================
// Failures from collaborators
// ============================================

func TestService_StorageFailure(t *testing.T) {
	service, repo, publisher := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	repo.SaveErr = errors.New("disk full")
	_, err = service.IncreaseStock(ctx, "A01", 1, "")
	assert.ErrorIs(t, err, inventory.ErrIOFailure)

	repo.Reset()
	repo.GetErr = errors.New("connection reset")
	_, err = service.GetItem(ctx, "A01")
	assert.ErrorIs(t, err, inventory.ErrIOFailure)

	repo.Reset()
	repo.ListErr = errors.New("timeout")
	_, err = service.ListItems(ctx)
	assert.ErrorIs(t, err, inventory.ErrIOFailure)

	assert.Equal(t, []string{inventory.EventItemCreated}, publisher.EventTypes())
}

func TestService_VersionConflictPassesThrough(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 10, "pcs", 0)
	require.NoError(t, err)

	repo.SaveErr = &inventory.Error{Kind: inventory.KindConflict, Op: "save", Err: errors.New("stale")}
	_, err = service.IncreaseStock(ctx, "A01", 1, "")

	assert.ErrorIs(t, err, inventory.ErrConflict)
}

func TestService_PublishFailure(t *testing.T) {
	service, repo, publisher := newTestService()
	ctx := context.Background()

	publisher.PublishErr = errors.New("broker down")
	item, err := service.CreateItem(ctx, "A01", 15, "pcs", 0)
	require.NoError(t, err, "the save is the outcome even when publishing fails")
	assert.Equal(t, 15, item.OnHand().Amount())

	item, reservation, err := service.ReserveStock(ctx, "A01", "ord-1", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, reservation.ID)
	assert.Equal(t, 10, item.Reserved().Amount())

	item, err = service.IncreaseStock(ctx, "A01", 5, "")
	require.NoError(t, err)
	assert.Equal(t, 20, item.OnHand().Amount())

	stored, err := repo.GetBySKU(ctx, item.SKU())
	require.NoError(t, err)
	assert.Equal(t, 20, stored.OnHand().Amount())
	assert.Equal(t, 10, stored.Reserved().Amount())
	assert.Len(t, stored.Reservations(), 1)
}

func TestService_LockFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"lease held", fmt.Errorf("%w: inventory:A01", inventory.ErrLockNotAcquired), inventory.ErrConflict},
		{"deadline", context.DeadlineExceeded, inventory.ErrConflict},
		{"cancelled", context.Canceled, inventory.ErrConflict},
		{"backend down", errors.New("dial tcp: connection refused"), inventory.ErrIOFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockRepository()
			service := inventory.NewService(repo, failingLocker{err: tt.err})

			_, err := service.CreateItem(context.Background(), "A01", 10, "pcs", 0)

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, repo.SaveCount())
		})
	}
}

// ============================================
// Properties
// ============================================

func TestService_InvariantsHoldUnderRandomOperations(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()
	_, err := service.CreateItem(ctx, "A01", 20, "pcs", 5)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	var reservationIDs []string

	for step := 0; step < 500; step++ {
		n := rng.IntN(10)
		switch rng.IntN(5) {
		case 0:
			_, err = service.IncreaseStock(ctx, "A01", n, "")
		case 1:
			_, err = service.DecreaseStock(ctx, "A01", n, "")
		case 2:
			var res inventory.Reservation
			_, res, err = service.ReserveStock(ctx, "A01", "ORD", n)
			if err == nil {
				reservationIDs = append(reservationIDs, res.ID)
			}
		case 3:
			if len(reservationIDs) > 0 {
				idx := rng.IntN(len(reservationIDs))
				_, err = service.ReleaseReservation(ctx, "A01", reservationIDs[idx])
				if err == nil {
					reservationIDs = append(reservationIDs[:idx], reservationIDs[idx+1:]...)
				}
			}
		case 4:
			_, err = service.AdjustStock(ctx, "A01", n-5, "")
		}
		if err != nil {
			kind := inventory.KindOf(err)
			require.Contains(t, []inventory.Kind{
				inventory.KindInsufficientAvailable,
				inventory.KindInsufficientOnHand,
				inventory.KindInvariantViolation,
			}, kind, "step %d: %v", step, err)
		}

		item, err := service.GetItem(ctx, "A01")
		require.NoError(t, err)
		onHand, reserved := item.OnHand().Amount(), item.Reserved().Amount()
		require.GreaterOrEqual(t, reserved, 0)
		require.LessOrEqual(t, reserved, onHand)
		require.Equal(t, onHand-reserved, item.Available().Amount())

		sum := 0
		for _, r := range item.Reservations() {
			sum += r.Qty.Amount()
		}
		require.Equal(t, reserved, sum, "step %d", step)
	}
}
