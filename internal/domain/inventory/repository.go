package inventory

import (
	"context"
	"errors"
)

// Repository persists items. Lookups return (nil, nil) when nothing matches.
//
// Save is an upsert by identity that replaces the stored reservation set with
// the item's current one. Implementations bump the version and return the
// stored item; a save whose version does not match the stored version fails
// with KindConflict, and a new item whose SKU is taken fails with
// KindAlreadyExists.
type Repository interface {
	ListAll(ctx context.Context) ([]*Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	GetBySKU(ctx context.Context, sku SKU) (*Item, error)
	Save(ctx context.Context, item *Item) (*Item, error)
}

// ErrLockNotAcquired is returned by a Locker that gave up waiting for a key
// another holder keeps.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker serializes writers per key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Publisher delivers committed events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, []Event) error { return nil }
