package counter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestAllocator(t *testing.T) *RedisAllocator {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	allocator := NewRedisAllocatorWithClient(client)
	t.Cleanup(func() { _ = allocator.Close() })
	return allocator
}

func TestNextResourceIDStartsAtZero(t *testing.T) {
	allocator := setupTestAllocator(t)
	ctx := context.Background()

	for want := int64(0); want < 3; want++ {
		got, err := allocator.NextResourceID(ctx)
		if err != nil {
			t.Fatalf("NextResourceID failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected resource id %d, got %d", want, got)
		}
	}
}

func TestNextResourceIDInitializesChildCounters(t *testing.T) {
	allocator := setupTestAllocator(t)
	ctx := context.Background()

	resourceID, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}

	for _, kind := range []Kind{KindComment, KindUpvote, KindFlag} {
		id, err := allocator.NextChildID(ctx, resourceID, kind)
		if err != nil {
			t.Fatalf("NextChildID(%s) failed: %v", kind, err)
		}
		if id != 0 {
			t.Fatalf("first %s id should be 0, got %d", kind, id)
		}
	}
}

func TestNextChildIDCountsKindsIndependently(t *testing.T) {
	allocator := setupTestAllocator(t)
	ctx := context.Background()

	resourceID, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}

	for want := int64(0); want < 4; want++ {
		got, err := allocator.NextChildID(ctx, resourceID, KindComment)
		if err != nil {
			t.Fatalf("NextChildID failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected comment id %d, got %d", want, got)
		}
	}

	got, err := allocator.NextChildID(ctx, resourceID, KindUpvote)
	if err != nil {
		t.Fatalf("NextChildID failed: %v", err)
	}
	if got != 0 {
		t.Fatalf("upvote counter should be unaffected by comment allocations, got %d", got)
	}
}

func TestNextChildIDWithoutCounterDocument(t *testing.T) {
	allocator := setupTestAllocator(t)

	_, err := allocator.NextChildID(context.Background(), 42, KindComment)
	if !errors.Is(err, ErrNoCounter) {
		t.Fatalf("expected ErrNoCounter, got %v", err)
	}
}

func TestNextChildIDRejectsUnknownKind(t *testing.T) {
	allocator := setupTestAllocator(t)

	_, err := allocator.NextChildID(context.Background(), 0, Kind("reaction"))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDropCounters(t *testing.T) {
	allocator := setupTestAllocator(t)
	ctx := context.Background()

	resourceID, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}
	if _, err := allocator.NextChildID(ctx, resourceID, KindFlag); err != nil {
		t.Fatalf("NextChildID failed: %v", err)
	}

	if err := allocator.DropCounters(ctx, resourceID); err != nil {
		t.Fatalf("DropCounters failed: %v", err)
	}

	if _, err := allocator.NextChildID(ctx, resourceID, KindFlag); !errors.Is(err, ErrNoCounter) {
		t.Fatalf("expected ErrNoCounter after drop, got %v", err)
	}

	// dropping again is a no-op
	if err := allocator.DropCounters(ctx, resourceID); err != nil {
		t.Fatalf("DropCounters on missing document failed: %v", err)
	}
}

func TestConcurrentChildAllocationsAreDistinct(t *testing.T) {
	allocator := setupTestAllocator(t)
	ctx := context.Background()

	resourceID, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}

	const workers = 32
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := allocator.NextChildID(ctx, resourceID, KindComment)
			if err != nil {
				t.Errorf("NextChildID failed: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, workers)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate comment id %d allocated under concurrency", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct ids, got %d", workers, len(seen))
	}

	// the next allocation continues after the contended range
	next, err := allocator.NextChildID(ctx, resourceID, KindComment)
	if err != nil {
		t.Fatalf("NextChildID failed: %v", err)
	}
	if next != workers {
		t.Fatalf("expected next comment id %d, got %d", workers, next)
	}
}
