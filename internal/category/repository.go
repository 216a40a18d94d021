// Package category provides category domain models, storage, and operations.
package category

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Category groups notes for one owner. Name is unique per owner.
type Category struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Color       *string   `db:"color" json:"color,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Repository defines storage operations for categories.
type Repository interface {
	FindAll(ctx context.Context, userID string) ([]Category, error)
	FindByID(ctx context.Context, userID, id string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) (int64, error)
	Delete(ctx context.Context, userID, id string) (int64, error)
}

// DBCategoryRepository implements Repository using MySQL.
type DBCategoryRepository struct {
	db *sqlx.DB
}

// NewDBCategoryRepository creates a new DBCategoryRepository.
func NewDBCategoryRepository(db *sqlx.DB) *DBCategoryRepository {
	return &DBCategoryRepository{db: db}
}

// FindAll returns the owner's categories ordered by name.
func (r *DBCategoryRepository) FindAll(ctx context.Context, userID string) ([]Category, error) {
	var categories []Category
	if err := r.db.SelectContext(ctx, &categories,
		"SELECT * FROM categories WHERE user_id = ? ORDER BY name", userID); err != nil {
		return nil, fmt.Errorf("db.SelectContext(categories) > %w", err)
	}
	return categories, nil
}

// FindByID returns the owner's category with the given id, or nil if not found.
func (r *DBCategoryRepository) FindByID(ctx context.Context, userID, id string) (*Category, error) {
	var c Category
	err := r.db.GetContext(ctx, &c,
		"SELECT * FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(category) > %w", err)
	}
	return &c, nil
}

// Create inserts a category. A per-owner duplicate name fails with the
// store's unique key violation.
func (r *DBCategoryRepository) Create(ctx context.Context, c *Category) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (id, user_id, name, description, color) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.UserID, c.Name, c.Description, c.Color); err != nil {
		return fmt.Errorf("db.ExecContext(insert category) > %w", err)
	}
	return nil
}

// Update updates a category's fields filtered by id and owner and returns
// the matched row count.
func (r *DBCategoryRepository) Update(ctx context.Context, c *Category) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, description = ?, color = ? WHERE id = ? AND user_id = ?",
		c.Name, c.Description, c.Color, c.ID, c.UserID)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(update category) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected, nil
}

// Delete removes the owner's category and returns the matched row count.
// Notes referencing it keep existing with an empty category reference.
func (r *DBCategoryRepository) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(delete category) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected, nil
}
