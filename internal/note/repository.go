// Package note provides the note aggregate: the note row together with its
// category reference, tag links, and URL rows.
package note

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/blancocp/notex/internal/category"
	"github.com/blancocp/notex/internal/database"
	"github.com/blancocp/notex/internal/tag"
)

// Note is a short text note owned by one user.
type Note struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Content     *string   `db:"content" json:"content,omitempty"`
	CategoryID  *string   `db:"category_id" json:"category_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Category *category.Category `db:"-" json:"category,omitempty"`
	Tags     []tag.Tag          `db:"-" json:"tags"`
	URLs     []URL              `db:"-" json:"urls"`
}

// URL is an external link belonging to exactly one note.
type URL struct {
	ID          string    `db:"id" json:"id"`
	NoteID      string    `db:"note_id" json:"note_id"`
	URL         string    `db:"url" json:"url"`
	Title       *string   `db:"title" json:"title,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Filter narrows and pages a note listing.
type Filter struct {
	CategoryID string
	Search     string
	Limit      int
	Offset     int
}

// ScalarUpdate carries the note row fields to change. Nil fields are left
// untouched. CategorySet with a nil CategoryID clears the reference.
type ScalarUpdate struct {
	Title       *string
	Description *string
	Content     *string
	CategoryID  *string
	CategorySet bool
}

// Repository defines storage operations for notes and their dependent rows.
type Repository interface {
	Insert(ctx context.Context, n *Note) error
	UpdateScalars(ctx context.Context, userID, id string, u ScalarUpdate) (int64, error)
	Delete(ctx context.Context, userID, id string) (int64, error)
	FindByID(ctx context.Context, userID, id string) (*Note, error)
	Find(ctx context.Context, userID string, f Filter) ([]Note, int, error)
	InsertLink(ctx context.Context, noteID, tagID string) error
	DeleteLinks(ctx context.Context, noteID string) error
	InsertURL(ctx context.Context, u *URL) error
	DeleteURLs(ctx context.Context, noteID string) error
}

// DBNoteRepository implements Repository using MySQL.
type DBNoteRepository struct {
	db *sqlx.DB
}

// NewDBNoteRepository creates a new DBNoteRepository.
func NewDBNoteRepository(db *sqlx.DB) *DBNoteRepository {
	return &DBNoteRepository{db: db}
}

// Insert inserts the note row only. Links and URLs are written separately.
func (r *DBNoteRepository) Insert(ctx context.Context, n *Note) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO notes (id, user_id, title, description, content, category_id) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.UserID, n.Title, n.Description, n.Content, n.CategoryID); err != nil {
		return fmt.Errorf("db.ExecContext(insert note) > %w", err)
	}
	return nil
}

// UpdateScalars updates the note row's scalar fields filtered by id and
// owner and returns the matched row count. updated_at is always bumped, so
// a sub-collection-only update still touches the row.
func (r *DBNoteRepository) UpdateScalars(ctx context.Context, userID, id string, u ScalarUpdate) (int64, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP(6)"}
	args := []any{}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *u.Content)
	}
	if u.CategorySet {
		sets = append(sets, "category_id = ?")
		args = append(args, u.CategoryID)
	}
	args = append(args, id, userID)

	query := "UPDATE notes SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(update note) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected, nil
}

// Delete removes the owner's note and returns the matched row count. Link
// and URL rows are removed by the store's cascading foreign keys.
func (r *DBNoteRepository) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM notes WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(delete note) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected, nil
}

// FindByID returns the owner's note with relations, or nil if not found.
func (r *DBNoteRepository) FindByID(ctx context.Context, userID, id string) (*Note, error) {
	var n Note
	err := r.db.GetContext(ctx, &n,
		"SELECT * FROM notes WHERE id = ? AND user_id = ?", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(note) > %w", err)
	}
	notes := []Note{n}
	if err := r.loadRelations(ctx, notes); err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// Find returns the owner's notes matching the filter, most recently created
// first, together with the total match count before paging.
func (r *DBNoteRepository) Find(ctx context.Context, userID string, f Filter) ([]Note, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Search != "" {
		pattern := "%" + database.EscapeLike(f.Search) + "%"
		where = append(where, "(title LIKE ? OR description LIKE ? OR content LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM notes WHERE "+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("db.GetContext(count notes) > %w", err)
	}

	query := "SELECT * FROM notes WHERE " + whereClause + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	var notes []Note
	if err := r.db.SelectContext(ctx, &notes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("db.SelectContext(notes) > %w", err)
	}
	if err := r.loadRelations(ctx, notes); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// InsertLink links a note to a tag.
func (r *DBNoteRepository) InsertLink(ctx context.Context, noteID, tagID string) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)", noteID, tagID); err != nil {
		return fmt.Errorf("db.ExecContext(insert note_tag) > %w", err)
	}
	return nil
}

// DeleteLinks removes all tag links of a note.
func (r *DBNoteRepository) DeleteLinks(ctx context.Context, noteID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM note_tags WHERE note_id = ?", noteID); err != nil {
		return fmt.Errorf("db.ExecContext(delete note_tags) > %w", err)
	}
	return nil
}

// InsertURL inserts a URL row scoped to its note.
func (r *DBNoteRepository) InsertURL(ctx context.Context, u *URL) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO note_urls (id, note_id, url, title, description) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.NoteID, u.URL, u.Title, u.Description); err != nil {
		return fmt.Errorf("db.ExecContext(insert note_url) > %w", err)
	}
	return nil
}

// DeleteURLs removes all URL rows of a note.
func (r *DBNoteRepository) DeleteURLs(ctx context.Context, noteID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM note_urls WHERE note_id = ?", noteID); err != nil {
		return fmt.Errorf("db.ExecContext(delete note_urls) > %w", err)
	}
	return nil
}

type noteTagRow struct {
	LinkNoteID string `db:"link_note_id"`
	tag.Tag
}

func (r *DBNoteRepository) loadRelations(ctx context.Context, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}

	noteIDs := make([]string, len(notes))
	noteMap := make(map[string]*Note, len(notes))
	for i := range notes {
		notes[i].Tags = []tag.Tag{}
		notes[i].URLs = []URL{}
		noteIDs[i] = notes[i].ID
		noteMap[notes[i].ID] = &notes[i]
	}

	query, args, err := sqlx.In(
		`SELECT nt.note_id AS link_note_id, t.* FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id IN (?) ORDER BY t.name`, noteIDs)
	if err != nil {
		return fmt.Errorf("sqlx.In(note_tags) > %w", err)
	}
	var tagRows []noteTagRow
	if err := r.db.SelectContext(ctx, &tagRows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("db.SelectContext(note_tags) > %w", err)
	}
	for _, row := range tagRows {
		n := noteMap[row.LinkNoteID]
		n.Tags = append(n.Tags, row.Tag)
	}

	query, args, err = sqlx.In("SELECT * FROM note_urls WHERE note_id IN (?) ORDER BY created_at", noteIDs)
	if err != nil {
		return fmt.Errorf("sqlx.In(note_urls) > %w", err)
	}
	var urls []URL
	if err := r.db.SelectContext(ctx, &urls, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("db.SelectContext(note_urls) > %w", err)
	}
	for _, u := range urls {
		n := noteMap[u.NoteID]
		n.URLs = append(n.URLs, u)
	}

	var categoryIDs []string
	seen := make(map[string]struct{})
	for i := range notes {
		if notes[i].CategoryID == nil {
			continue
		}
		if _, ok := seen[*notes[i].CategoryID]; ok {
			continue
		}
		seen[*notes[i].CategoryID] = struct{}{}
		categoryIDs = append(categoryIDs, *notes[i].CategoryID)
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	query, args, err = sqlx.In("SELECT * FROM categories WHERE id IN (?)", categoryIDs)
	if err != nil {
		return fmt.Errorf("sqlx.In(categories) > %w", err)
	}
	var categories []category.Category
	if err := r.db.SelectContext(ctx, &categories, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("db.SelectContext(categories) > %w", err)
	}
	categoryMap := make(map[string]*category.Category, len(categories))
	for i := range categories {
		categoryMap[categories[i].ID] = &categories[i]
	}
	for i := range notes {
		if notes[i].CategoryID != nil {
			notes[i].Category = categoryMap[*notes[i].CategoryID]
		}
	}

	return nil
}
