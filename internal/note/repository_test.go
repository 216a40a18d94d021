package note

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blancocp/notex/internal/testutil"
)

var noteColumns = []string{"id", "user_id", "title", "description", "content", "category_id", "created_at", "updated_at"}

func noteRow(id, userID, title string, categoryID *string, createdAt time.Time) []driver.Value {
	var cat driver.Value
	if categoryID != nil {
		cat = *categoryID
	}
	return []driver.Value{id, userID, title, nil, nil, cat, createdAt, createdAt}
}

func addNoteRows(rows *sqlmock.Rows, values ...[]driver.Value) *sqlmock.Rows {
	for _, v := range values {
		rows.AddRow(v...)
	}
	return rows
}

func expectEmptyRelations(mock sqlmock.Sqlmock, noteIDs ...driver.Value) {
	mock.ExpectQuery("SELECT nt.note_id AS link_note_id, t.\\* FROM note_tags nt").
		WithArgs(noteIDs...).
		WillReturnRows(sqlmock.NewRows([]string{"link_note_id", "id", "user_id", "name", "description", "color", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM note_urls WHERE note_id IN")).
		WithArgs(noteIDs...).
		WillReturnRows(sqlmock.NewRows([]string{"id", "note_id", "url", "title", "description", "created_at"}))
}

func TestDBNoteRepository_Insert(t *testing.T) {
	tests := []struct {
		name      string
		note      *Note
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   bool
	}{
		{
			name: "inserts the note row",
			note: &Note{ID: "n1", UserID: "u1", Title: "groceries"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					"INSERT INTO notes (id, user_id, title, description, content, category_id) VALUES (?, ?, ?, ?, ?, ?)")).
					WithArgs("n1", "u1", "groceries", nil, nil, nil).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "db error",
			note: &Note{ID: "n1", UserID: "u1", Title: "groceries"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO notes").
					WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := testutil.NewMockDB(t, true)
			tt.setupMock(mock)

			err := NewDBNoteRepository(db).Insert(context.Background(), tt.note)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBNoteRepository_UpdateScalars(t *testing.T) {
	title := "new title"
	content := "new content"

	tests := []struct {
		name      string
		update    ScalarUpdate
		setupMock func(mock sqlmock.Sqlmock)
		want      int64
		wantErr   bool
	}{
		{
			name:   "updates only the supplied fields",
			update: ScalarUpdate{Title: &title, Content: &content},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					"UPDATE notes SET updated_at = CURRENT_TIMESTAMP(6), title = ?, content = ? WHERE id = ? AND user_id = ?")).
					WithArgs("new title", "new content", "n1", "u1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: 1,
		},
		{
			name:   "clears the category reference",
			update: ScalarUpdate{CategorySet: true},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					"UPDATE notes SET updated_at = CURRENT_TIMESTAMP(6), category_id = ? WHERE id = ? AND user_id = ?")).
					WithArgs(nil, "n1", "u1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: 1,
		},
		{
			name:   "touches updated_at even without scalar changes",
			update: ScalarUpdate{},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					"UPDATE notes SET updated_at = CURRENT_TIMESTAMP(6) WHERE id = ? AND user_id = ?")).
					WithArgs("n1", "u1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: 1,
		},
		{
			name:   "no matching row",
			update: ScalarUpdate{Title: &title},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE notes SET").
					WithArgs("new title", "n1", "u1").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: 0,
		},
		{
			name:   "db error",
			update: ScalarUpdate{Title: &title},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE notes SET").
					WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := testutil.NewMockDB(t, true)
			tt.setupMock(mock)

			got, err := NewDBNoteRepository(db).UpdateScalars(context.Background(), "u1", "n1", tt.update)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBNoteRepository_Delete(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      int64
		wantErr   bool
	}{
		{
			name: "deletes the owned note",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notes WHERE id = ? AND user_id = ?")).
					WithArgs("n1", "u1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: 1,
		},
		{
			name: "no matching row",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM notes").
					WithArgs("n1", "u1").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: 0,
		},
		{
			name: "db error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM notes").
					WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := testutil.NewMockDB(t, true)
			tt.setupMock(mock)

			got, err := NewDBNoteRepository(db).Delete(context.Background(), "u1", "n1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBNoteRepository_FindByID(t *testing.T) {
	createdAt := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	categoryID := "cat-1"

	t.Run("returns the note with relations", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM notes WHERE id = ? AND user_id = ?")).
			WithArgs("n1", "u1").
			WillReturnRows(addNoteRows(sqlmock.NewRows(noteColumns),
				noteRow("n1", "u1", "groceries", &categoryID, createdAt)))
		mock.ExpectQuery("SELECT nt.note_id AS link_note_id, t.\\* FROM note_tags nt").
			WithArgs("n1").
			WillReturnRows(sqlmock.NewRows([]string{"link_note_id", "id", "user_id", "name", "description", "color", "created_at"}).
				AddRow("n1", "t1", "u1", "errands", nil, nil, createdAt))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM note_urls WHERE note_id IN")).
			WithArgs("n1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "note_id", "url", "title", "description", "created_at"}).
				AddRow("url-1", "n1", "https://example.com/list", nil, nil, createdAt))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM categories WHERE id IN")).
			WithArgs("cat-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "description", "color", "created_at"}).
				AddRow("cat-1", "u1", "personal", nil, nil, createdAt))

		got, err := NewDBNoteRepository(db).FindByID(context.Background(), "u1", "n1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "groceries", got.Title)
		require.Len(t, got.Tags, 1)
		assert.Equal(t, "errands", got.Tags[0].Name)
		require.Len(t, got.URLs, 1)
		assert.Equal(t, "https://example.com/list", got.URLs[0].URL)
		require.NotNil(t, got.Category)
		assert.Equal(t, "personal", got.Category.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for an unknown note", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM notes WHERE id = ? AND user_id = ?")).
			WithArgs("absent", "u1").
			WillReturnRows(sqlmock.NewRows(noteColumns))

		got, err := NewDBNoteRepository(db).FindByID(context.Background(), "u1", "absent")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("db error", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectQuery("SELECT \\* FROM notes").
			WillReturnError(fmt.Errorf("connection refused"))

		got, err := NewDBNoteRepository(db).FindByID(context.Background(), "u1", "n1")
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

func TestDBNoteRepository_Find(t *testing.T) {
	createdAt := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	t.Run("lists with paging", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notes WHERE user_id = ?")).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT * FROM notes WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?")).
			WithArgs("u1", 2, 2).
			WillReturnRows(addNoteRows(sqlmock.NewRows(noteColumns),
				noteRow("n3", "u1", "third", nil, createdAt),
				noteRow("n4", "u1", "fourth", nil, createdAt)))
		expectEmptyRelations(mock, "n3", "n4")

		notes, total, err := NewDBNoteRepository(db).Find(context.Background(), "u1", Filter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, notes, 2)
		assert.Equal(t, "third", notes[0].Title)
		assert.Empty(t, notes[0].Tags)
		assert.Empty(t, notes[0].URLs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("search escapes wildcard characters", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		pattern := `%100\%%`
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT COUNT(*) FROM notes WHERE user_id = ? AND (title LIKE ? OR description LIKE ? OR content LIKE ?)")).
			WithArgs("u1", pattern, pattern, pattern).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT * FROM notes WHERE user_id = ? AND (title LIKE ? OR description LIKE ? OR content LIKE ?) ORDER BY created_at DESC")).
			WithArgs("u1", pattern, pattern, pattern).
			WillReturnRows(addNoteRows(sqlmock.NewRows(noteColumns),
				noteRow("n1", "u1", "100% done", nil, createdAt)))
		expectEmptyRelations(mock, "n1")

		notes, total, err := NewDBNoteRepository(db).Find(context.Background(), "u1", Filter{Search: "100%"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, notes, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters by category", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT COUNT(*) FROM notes WHERE user_id = ? AND category_id = ?")).
			WithArgs("u1", "cat-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT * FROM notes WHERE user_id = ? AND category_id = ? ORDER BY created_at DESC")).
			WithArgs("u1", "cat-1").
			WillReturnRows(sqlmock.NewRows(noteColumns))

		notes, total, err := NewDBNoteRepository(db).Find(context.Background(), "u1", Filter{CategoryID: "cat-1"})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Empty(t, notes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count error", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnError(fmt.Errorf("connection refused"))

		_, _, err := NewDBNoteRepository(db).Find(context.Background(), "u1", Filter{})
		assert.Error(t, err)
	})
}

func TestDBNoteRepository_Links(t *testing.T) {
	t.Run("inserts a link", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)")).
			WithArgs("n1", "t1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewDBNoteRepository(db).InsertLink(context.Background(), "n1", "t1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes all links of a note", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM note_tags WHERE note_id = ?")).
			WithArgs("n1").
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, NewDBNoteRepository(db).DeleteLinks(context.Background(), "n1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBNoteRepository_URLs(t *testing.T) {
	t.Run("inserts a url row", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		title := "checklist"
		mock.ExpectExec(regexp.QuoteMeta(
			"INSERT INTO note_urls (id, note_id, url, title, description) VALUES (?, ?, ?, ?, ?)")).
			WithArgs("url-1", "n1", "https://example.com", &title, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewDBNoteRepository(db).InsertURL(context.Background(), &URL{
			ID:     "url-1",
			NoteID: "n1",
			URL:    "https://example.com",
			Title:  &title,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes all url rows of a note", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t, true)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM note_urls WHERE note_id = ?")).
			WithArgs("n1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewDBNoteRepository(db).DeleteURLs(context.Background(), "n1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
