package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresAllocator keeps counters in two tables: a singleton row for the
// global resource id and one row per resource for the child counters. Each
// allocation is one UPDATE ... RETURNING, so the engine serializes
// increments per row.
type PostgresAllocator struct {
	db *sql.DB
}

func NewPostgresAllocator(db *sql.DB) *PostgresAllocator {
	return &PostgresAllocator{db: db}
}

var childColumn = map[Kind]string{
	KindComment: "comment_count",
	KindUpvote:  "upvote_count",
	KindFlag:    "flag_count",
}

// NextResourceID allocates a resource id and creates the resource's counter
// row in a single transaction, so a crash cannot leave an allocated id
// without child counters.
func (a *PostgresAllocator) NextResourceID(ctx context.Context) (int64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin resource id tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO resource_id_counter (singleton, next_id)
		VALUES (TRUE, 1)
		ON CONFLICT (singleton) DO UPDATE SET next_id = resource_id_counter.next_id + 1
		RETURNING next_id - 1
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate resource id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO resource_counters (resource_id, comment_count, upvote_count, flag_count)
		VALUES ($1, 0, 0, 0)
	`, next); err != nil {
		return 0, fmt.Errorf("initialize child counters for resource %d: %w", next, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit resource id tx: %w", err)
	}
	return next, nil
}

// NextChildID increments the kind's column and returns the pre-increment
// value. A missing counter row surfaces as ErrNoCounter, never as 0.
func (a *PostgresAllocator) NextChildID(ctx context.Context, resourceID int64, kind Kind) (int64, error) {
	column, ok := childColumn[kind]
	if !ok {
		return 0, ErrUnknownKind
	}

	var after int64
	query := fmt.Sprintf(`
		UPDATE resource_counters
		SET %[1]s = %[1]s + 1
		WHERE resource_id = $1
		RETURNING %[1]s
	`, column)
	err := a.db.QueryRowContext(ctx, query, resourceID).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoCounter
	}
	if err != nil {
		return 0, fmt.Errorf("allocate %s id for resource %d: %w", kind, resourceID, err)
	}
	return after - 1, nil
}

func (a *PostgresAllocator) DropCounters(ctx context.Context, resourceID int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM resource_counters WHERE resource_id = $1`, resourceID); err != nil {
		return fmt.Errorf("drop counters for resource %d: %w", resourceID, err)
	}
	return nil
}
