package mocks

import (
	"context"
	"sync"

	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/example/inventory-control/internal/infrastructure/store"
)

// MockRepository is an in-memory inventory.Repository that records calls
// and can be told to fail.
type MockRepository struct {
	mu    sync.Mutex
	inner *store.MemoryRepository

	// For tracking calls in tests
	SaveCalls     []inventory.Snapshot
	GetBySKUCalls []string

	SaveErr      error
	GetErr       error
	ListErr      error
	SaveCallback func(ctx context.Context, item *inventory.Item) (*inventory.Item, error)
}

// NewMockRepository creates a new MockRepository
func NewMockRepository() *MockRepository {
	return &MockRepository{inner: store.NewMemoryRepository()}
}

func (m *MockRepository) ListAll(ctx context.Context) ([]*inventory.Item, error) {
	m.mu.Lock()
	err := m.ListErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.ListAll(ctx)
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	m.mu.Lock()
	err := m.GetErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.GetByID(ctx, id)
}

func (m *MockRepository) GetBySKU(ctx context.Context, sku inventory.SKU) (*inventory.Item, error) {
	m.mu.Lock()
	m.GetBySKUCalls = append(m.GetBySKUCalls, sku.String())
	err := m.GetErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.GetBySKU(ctx, sku)
}

func (m *MockRepository) Save(ctx context.Context, item *inventory.Item) (*inventory.Item, error) {
	m.mu.Lock()
	m.SaveCalls = append(m.SaveCalls, item.Snapshot())
	callback, err := m.SaveCallback, m.SaveErr
	m.mu.Unlock()

	if callback != nil {
		return callback(ctx, item)
	}
	if err != nil {
		return nil, err
	}
	return m.inner.Save(ctx, item)
}

// Seed stores an item directly, bypassing call tracking.
func (m *MockRepository) Seed(ctx context.Context, item *inventory.Item) (*inventory.Item, error) {
	return m.inner.Save(ctx, item)
}

// SaveCount returns the number of Save calls.
func (m *MockRepository) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SaveCalls)
}

// Reset clears recorded calls and configured errors.
func (m *MockRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls = nil
	m.GetBySKUCalls = nil
	m.SaveErr = nil
	m.GetErr = nil
	m.ListErr = nil
	m.SaveCallback = nil
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []inventory.Event

	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(ctx context.Context, events []inventory.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.events = append(p.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MockPublisher) Events() []inventory.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]inventory.Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventTypes returns the event types in publish order.
func (p *MockPublisher) EventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}
