package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/inventory-control/internal/domain/inventory"
)

// MemoryRepository keeps item snapshots in process memory. Every load
// rebuilds a fresh *inventory.Item, so callers never share state.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]inventory.Snapshot // id -> snapshot
	bySKU map[string]string             // sku -> id
	order []string                      // ids in insertion order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]inventory.Snapshot),
		bySKU: make(map[string]string),
	}
}

// ListAll returns items in the order they were first saved.
func (r *MemoryRepository) ListAll(ctx context.Context) ([]*inventory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*inventory.Item, 0, len(r.order))
	for _, id := range r.order {
		item, err := inventory.Restore(r.items[id])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return inventory.Restore(snap)
}

func (r *MemoryRepository) GetBySKU(ctx context.Context, sku inventory.SKU) (*inventory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySKU[sku.String()]
	if !ok {
		return nil, nil
	}
	return inventory.Restore(r.items[id])
}

func (r *MemoryRepository) Save(ctx context.Context, item *inventory.Item) (*inventory.Item, error) {
	snap := item.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.items[snap.ID]
	storedVersion := 0
	if exists {
		storedVersion = current.Version
	}
	if snap.Version != storedVersion {
		return nil, &inventory.Error{
			Kind: inventory.KindConflict,
			Op:   "save",
			Err:  fmt.Errorf("item %s: version %d, stored %d", snap.ID, snap.Version, storedVersion),
		}
	}
	if owner, taken := r.bySKU[snap.SKU]; taken && owner != snap.ID {
		return nil, &inventory.Error{
			Kind: inventory.KindAlreadyExists,
			Op:   "save",
			Err:  fmt.Errorf("sku %s belongs to item %s", snap.SKU, owner),
		}
	}

	snap.Version++
	if !exists {
		r.order = append(r.order, snap.ID)
	} else if current.SKU != snap.SKU {
		delete(r.bySKU, current.SKU)
	}
	r.items[snap.ID] = snap
	r.bySKU[snap.SKU] = snap.ID

	return inventory.Restore(snap)
}

// Len returns the number of stored items.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
