package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) InsertResource(ctx context.Context, item Resource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, title, description, url, creator_id, creator_first_name, creator_last_name, created_at, is_edited)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Title, item.Description, item.URL, item.CreatorID, item.CreatorFirstName, item.CreatorLastName, item.CreatedAt, item.IsEdited)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResource(ctx context.Context, id int64) (Resource, error) {
	var item Resource
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, url, creator_id, creator_first_name, creator_last_name, created_at, is_edited
		FROM resources
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Title, &item.Description, &item.URL, &item.CreatorID, &item.CreatorFirstName, &item.CreatorLastName, &item.CreatedAt, &item.IsEdited)
	if err != nil {
		return Resource{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, url, creator_id, creator_first_name, creator_last_name, created_at, is_edited
		FROM resources
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	items := make([]Resource, 0)
	for rows.Next() {
		var item Resource
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.URL, &item.CreatorID, &item.CreatorFirstName, &item.CreatorLastName, &item.CreatedAt, &item.IsEdited); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteResource(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete resource rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteResourceChildren removes every comment, upvote and flag attached to
// the resource. Called before the resource row itself is deleted.
func (s *PostgresStore) DeleteResourceChildren(ctx context.Context, resourceID int64) error {
	for _, table := range []string{"comments", "upvotes", "review_flags"} {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE resource_id = $1`, table), resourceID); err != nil {
			return fmt.Errorf("delete resource %s: %w", table, err)
		}
	}
	return nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (resource_id, id, contents, creator_id, creator_first_name, creator_last_name, created_at, is_edited)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ResourceID, item.ID, item.Contents, item.CreatorID, item.CreatorFirstName, item.CreatorLastName, item.CreatedAt, item.IsEdited)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, resourceID, id int64) (Comment, error) {
	var item Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT resource_id, id, contents, creator_id, creator_first_name, creator_last_name, created_at, is_edited
		FROM comments
		WHERE resource_id = $1 AND id = $2
	`, resourceID, id).Scan(&item.ResourceID, &item.ID, &item.Contents, &item.CreatorID, &item.CreatorFirstName, &item.CreatorLastName, &item.CreatedAt, &item.IsEdited)
	if err != nil {
		return Comment{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, resourceID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE resource_id = $1 AND id = $2`, resourceID, id)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertUpvote(ctx context.Context, item Upvote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upvotes (resource_id, id, creator_id, creator_first_name, creator_last_name, created_at, is_edited)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ResourceID, item.ID, item.CreatorID, item.CreatorFirstName, item.CreatorLastName, item.CreatedAt, item.IsEdited)
	if err != nil {
		return fmt.Errorf("insert upvote: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUpvote(ctx context.Context, resourceID, id int64) (Upvote, error) {
	var item Upvote
	err := s.db.QueryRowContext(ctx, `
		SELECT resource_id, id, creator_id, creator_first_name, creator_last_name, created_at, is_edited
		FROM upvotes
		WHERE resource_id = $1 AND id = $2
	`, resourceID, id).Scan(&item.ResourceID, &item.ID, &item.CreatorID, &item.CreatorFirstName, &item.CreatorLastName, &item.CreatedAt, &item.IsEdited)
	if err != nil {
		return Upvote{}, err
	}
	return item, nil
}

// HasUpvote reports whether creatorID already upvoted the resource.
func (s *PostgresStore) HasUpvote(ctx context.Context, resourceID, creatorID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM upvotes WHERE resource_id = $1 AND creator_id = $2)
	`, resourceID, creatorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check upvote: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeleteUpvote(ctx context.Context, resourceID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM upvotes WHERE resource_id = $1 AND id = $2`, resourceID, id)
	if err != nil {
		return false, fmt.Errorf("delete upvote: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete upvote rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertFlag(ctx context.Context, item ReviewFlag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_flags (resource_id, id, contents, creator_id, creator_first_name, creator_last_name, created_at, is_edited)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ResourceID, item.ID, item.Contents, item.CreatorID, item.CreatorFirstName, item.CreatorLastName, item.CreatedAt, item.IsEdited)
	if err != nil {
		return fmt.Errorf("insert flag: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFlag(ctx context.Context, resourceID, id int64) (ReviewFlag, error) {
	var item ReviewFlag
	err := s.db.QueryRowContext(ctx, `
		SELECT resource_id, id, contents, creator_id, creator_first_name, creator_last_name, created_at, is_edited
		FROM review_flags
		WHERE resource_id = $1 AND id = $2
	`, resourceID, id).Scan(&item.ResourceID, &item.ID, &item.Contents, &item.CreatorID, &item.CreatorFirstName, &item.CreatorLastName, &item.CreatedAt, &item.IsEdited)
	if err != nil {
		return ReviewFlag{}, err
	}
	return item, nil
}

// UpdateFlagContents rewrites the flag text and marks the record edited.
// Returns false when no row matched, which the caller treats as the record
// having vanished between lookup and update.
func (s *PostgresStore) UpdateFlagContents(ctx context.Context, resourceID, id int64, contents string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE review_flags
		SET contents = $3, is_edited = TRUE
		WHERE resource_id = $1 AND id = $2
	`, resourceID, id, contents)
	if err != nil {
		return false, fmt.Errorf("update flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update flag rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteFlag(ctx context.Context, resourceID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM review_flags WHERE resource_id = $1 AND id = $2`, resourceID, id)
	if err != nil {
		return false, fmt.Errorf("delete flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete flag rows: %w", err)
	}
	return affected > 0, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
