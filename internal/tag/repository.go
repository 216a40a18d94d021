// Package tag provides tag domain models, storage, and operations.
package tag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/blancocp/notex/internal/database"
)

// Tag labels notes for one owner. Name is lowercase and unique per owner.
type Tag struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Color       *string   `db:"color" json:"color,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Repository defines storage operations for tags.
type Repository interface {
	FindAll(ctx context.Context, userID string) ([]Tag, error)
	Create(ctx context.Context, t *Tag) error
	Update(ctx context.Context, t *Tag) (int64, error)
	Delete(ctx context.Context, userID, id string) (int64, error)
	ResolveOrCreate(ctx context.Context, userID, name string) (string, error)
	Search(ctx context.Context, userID, query string, limit int) ([]Tag, error)
}

// DBTagRepository implements Repository using MySQL.
type DBTagRepository struct {
	db *sqlx.DB
}

// NewDBTagRepository creates a new DBTagRepository.
func NewDBTagRepository(db *sqlx.DB) *DBTagRepository {
	return &DBTagRepository{db: db}
}

// FindAll returns the owner's tags ordered by name.
func (r *DBTagRepository) FindAll(ctx context.Context, userID string) ([]Tag, error) {
	var tags []Tag
	if err := r.db.SelectContext(ctx, &tags,
		"SELECT * FROM tags WHERE user_id = ? ORDER BY name", userID); err != nil {
		return nil, fmt.Errorf("db.SelectContext(tags) > %w", err)
	}
	return tags, nil
}

// Create inserts a tag. A per-owner duplicate name fails with the store's
// unique key violation.
func (r *DBTagRepository) Create(ctx context.Context, t *Tag) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO tags (id, user_id, name, description, color) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.UserID, t.Name, t.Description, t.Color); err != nil {
		return fmt.Errorf("db.ExecContext(insert tag) > %w", err)
	}
	return nil
}

// Update updates a tag's fields filtered by id and owner and returns the
// matched row count.
func (r *DBTagRepository) Update(ctx context.Context, t *Tag) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tags SET name = ?, description = ?, color = ? WHERE id = ? AND user_id = ?",
		t.Name, t.Description, t.Color, t.ID, t.UserID)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(update tag) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected, nil
}

// Delete removes the owner's tag and returns the matched row count. Links
// from notes are removed by the store, the notes themselves survive.
func (r *DBTagRepository) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM tags WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(delete tag) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected, nil
}

// ResolveOrCreate returns the id of the owner's tag with the given
// normalized name, inserting it first if absent. Two concurrent calls for
// the same new name race on the unique key; the loser re-reads the row the
// winner created, so both observe the same id.
func (r *DBTagRepository) ResolveOrCreate(ctx context.Context, userID, name string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id,
		"SELECT id FROM tags WHERE user_id = ? AND name = ?", userID, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("db.GetContext(tag id) > %w", err)
	}

	id = uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO tags (id, user_id, name) VALUES (?, ?, ?)", id, userID, name); err != nil {
		if !database.IsDuplicateEntry(err) {
			return "", fmt.Errorf("db.ExecContext(insert tag) > %w", err)
		}
		// Lost the race: the row exists now, return its id.
		if err := r.db.GetContext(ctx, &id,
			"SELECT id FROM tags WHERE user_id = ? AND name = ?", userID, name); err != nil {
			return "", fmt.Errorf("db.GetContext(tag id after conflict) > %w", err)
		}
	}
	return id, nil
}

// Search returns up to limit tags whose name contains the escaped query
// fragment, ordered by name.
func (r *DBTagRepository) Search(ctx context.Context, userID, query string, limit int) ([]Tag, error) {
	var tags []Tag
	pattern := "%" + database.EscapeLike(query) + "%"
	if err := r.db.SelectContext(ctx, &tags,
		"SELECT * FROM tags WHERE user_id = ? AND name LIKE ? ORDER BY name LIMIT ?",
		userID, pattern, limit); err != nil {
		return nil, fmt.Errorf("db.SelectContext(search tags) > %w", err)
	}
	return tags, nil
}
