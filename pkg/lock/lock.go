package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

// Store exposes the Redis operations the locker relies on.
type Store interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	CompareAndDelete(context.Context, string, string) (bool, error)
	LockKey(scope, id string) string
}

// Locker grants short-lived exclusive ownership of a (scope, id) pair using
// SETNX with a TTL. Keys follow the `ps:lock:<scope>:<id>` pattern.
type Locker struct {
	store Store
	ttl   time.Duration
}

// Release gives a held lock back. It is safe to call after the TTL elapsed.
type Release func(context.Context) error

// NewLocker builds a locker whose leases expire after ttl.
func NewLocker(store Store, ttl time.Duration) (*Locker, error) {
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Locker{store: store, ttl: ttl}, nil
}

// Acquire takes the lock or fails with CodeConflict when someone else holds it.
func (l *Locker) Acquire(ctx context.Context, scope, id string) (Release, error) {
	if scope == "" || id == "" {
		return nil, errors.New("lock scope and id are required")
	}
	key := l.store.LockKey(scope, id)
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "operation already in progress").
			WithDetails(map[string]any{"scope": scope, "id": id})
	}
	return func(ctx context.Context) error {
		_, err := l.store.CompareAndDelete(ctx, key, token)
		return err
	}, nil
}
