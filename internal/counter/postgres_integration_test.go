package counter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"linkboard/api/internal/store"
)

// openTestDB connects to the database named by TEST_DATABASE_URL and applies
// migrations; the test is skipped when no database is configured.
func openTestDB(t *testing.T) *PostgresAllocator {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres allocator test")
	}

	ctx := context.Background()
	db, err := store.Open(ctx, databaseURL, 5, 2)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE resource_counters, resource_id_counter`); err != nil {
		t.Fatalf("reset counter tables: %v", err)
	}

	return NewPostgresAllocator(db)
}

func TestPostgresResourceIDAndChildCounters(t *testing.T) {
	allocator := openTestDB(t)
	ctx := context.Background()

	first, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}
	if first != 0 {
		t.Fatalf("expected first resource id 0, got %d", first)
	}

	second, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}
	if second != 1 {
		t.Fatalf("expected second resource id 1, got %d", second)
	}

	for want := int64(0); want < 3; want++ {
		got, err := allocator.NextChildID(ctx, first, KindComment)
		if err != nil {
			t.Fatalf("NextChildID failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected comment id %d, got %d", want, got)
		}
	}

	// the other resource's counters are untouched
	got, err := allocator.NextChildID(ctx, second, KindComment)
	if err != nil {
		t.Fatalf("NextChildID failed: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected comment id 0 on second resource, got %d", got)
	}
}

func TestPostgresNextChildIDWithoutCounterRow(t *testing.T) {
	allocator := openTestDB(t)

	_, err := allocator.NextChildID(context.Background(), 9999, KindUpvote)
	if !errors.Is(err, ErrNoCounter) {
		t.Fatalf("expected ErrNoCounter, got %v", err)
	}
}

func TestPostgresDropCounters(t *testing.T) {
	allocator := openTestDB(t)
	ctx := context.Background()

	resourceID, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}
	if err := allocator.DropCounters(ctx, resourceID); err != nil {
		t.Fatalf("DropCounters failed: %v", err)
	}
	if _, err := allocator.NextChildID(ctx, resourceID, KindComment); !errors.Is(err, ErrNoCounter) {
		t.Fatalf("expected ErrNoCounter after drop, got %v", err)
	}
}

func TestPostgresConcurrentAllocationsAreDistinct(t *testing.T) {
	allocator := openTestDB(t)
	ctx := context.Background()

	resourceID, err := allocator.NextResourceID(ctx)
	if err != nil {
		t.Fatalf("NextResourceID failed: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan int64, workers)
	errc := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := allocator.NextChildID(ctx, resourceID, KindUpvote)
			if err != nil {
				errc <- fmt.Errorf("NextChildID: %w", err)
				return
			}
			results <- id
		}()
	}
	wg.Wait()
	close(results)
	close(errc)

	for err := range errc {
		t.Fatal(err)
	}
	seen := make(map[int64]bool, workers)
	for id := range results {
		if seen[id] {
			t.Fatalf("duplicate upvote id %d allocated under concurrency", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct ids, got %d", workers, len(seen))
	}
}
