package redisclient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestLocalLockerFailsFastWhileHeld(t *testing.T) {
	l := NewLocalLocker()
	key := DonorKey(uuid.New())

	err := l.WithLock(context.Background(), key, func(ctx context.Context) error {
		inner := l.WithLock(ctx, key, func(context.Context) error { return nil })
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer lock: %v", err)
	}

	// Released after fn returns.
	if err := l.WithLock(context.Background(), key, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("relock: %v", err)
	}
}

func TestLocalLockerPropagatesError(t *testing.T) {
	l := NewLocalLocker()
	boom := errors.New("boom")
	if err := l.WithLock(context.Background(), AgentKey(uuid.New()), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestKeysAreDistinct(t *testing.T) {
	id := uuid.New()
	if DonorKey(id) == AgentKey(id) {
		t.Fatal("donor and agent keys collide")
	}
}
