package note

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/blancocp/notex/internal/apperr"
	"github.com/blancocp/notex/internal/category"
	"github.com/blancocp/notex/internal/tag"
)

// TagResolver resolves a normalized tag name to a tag id, creating the tag
// when absent.
type TagResolver interface {
	ResolveOrCreate(ctx context.Context, userID, name string) (string, error)
}

// CategoryFinder looks up an owner's category.
type CategoryFinder interface {
	FindByID(ctx context.Context, userID, id string) (*category.Category, error)
}

// URLInput carries one caller-supplied note URL.
type URLInput struct {
	URL         string
	Title       *string
	Description *string
}

// CreateInput carries the desired state of a new note aggregate.
type CreateInput struct {
	Title       string
	Description *string
	Content     *string
	CategoryID  *string
	Tags        []string
	URLs        []URLInput
}

// UpdateInput carries the desired changes to an existing aggregate. Nil
// scalar fields are left untouched. A nil Tags or URLs pointer leaves that
// sub-collection alone; a non-nil pointer is a full replacement set, so an
// empty list clears it. An empty CategoryID string clears the reference.
type UpdateInput struct {
	Title       *string
	Description *string
	Content     *string
	CategoryID  *string
	Tags        *[]string
	URLs        *[]URLInput
}

// ListResult pages a note listing.
type ListResult struct {
	Notes   []Note `json:"notes"`
	Total   int    `json:"total"`
	HasMore bool   `json:"has_more"`
}

// Service synchronizes the note aggregate across the four backing tables.
// It is stateless; every call stands alone. The store offers no cross-table
// transaction, so a failure after the note row is written surfaces as an
// apperr.PartialAggregateError instead of being rolled back.
type Service struct {
	repo       Repository
	tags       TagResolver
	categories CategoryFinder
}

// NewService creates a note Service.
func NewService(repo Repository, tags TagResolver, categories CategoryFinder) *Service {
	return &Service{
		repo:       repo,
		tags:       tags,
		categories: categories,
	}
}

// Create validates the whole aggregate, inserts the note row, then fans out
// over tag links and URL rows. Validation happens before any write.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Note, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validationf("title is required")
	}
	tagNames, err := normalizeTagNames(in.Tags)
	if err != nil {
		return nil, err
	}
	if err := validateURLs(in.URLs); err != nil {
		return nil, err
	}
	categoryID, err := s.checkCategory(ctx, userID, in.CategoryID)
	if err != nil {
		return nil, err
	}

	n := &Note{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: in.Description,
		Content:     in.Content,
		CategoryID:  categoryID,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return nil, apperr.Store(err)
	}

	if err := s.writeRelations(ctx, userID, n.ID, tagNames, in.URLs); err != nil {
		return nil, &apperr.PartialAggregateError{NoteID: n.ID, Err: err}
	}

	return s.fetchAfterWrite(ctx, userID, n.ID)
}

// Update reconciles the stored aggregate with the desired state. The note
// row is updated first; a zero match count means not-found or not-owned and
// nothing else is touched. Supplied sub-collections are replaced wholesale:
// existing rows are deleted, then the new set is written.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*Note, error) {
	scalar := ScalarUpdate{
		Description: in.Description,
		Content:     in.Content,
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Validationf("title is required")
		}
		scalar.Title = &title
	}
	var tagNames []string
	if in.Tags != nil {
		var err error
		if tagNames, err = normalizeTagNames(*in.Tags); err != nil {
			return nil, err
		}
	}
	if in.URLs != nil {
		if err := validateURLs(*in.URLs); err != nil {
			return nil, err
		}
	}
	if in.CategoryID != nil {
		scalar.CategorySet = true
		categoryID, err := s.checkCategory(ctx, userID, in.CategoryID)
		if err != nil {
			return nil, err
		}
		scalar.CategoryID = categoryID
	}

	affected, err := s.repo.UpdateScalars(ctx, userID, id, scalar)
	if err != nil {
		return nil, apperr.Store(err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("note", id)
	}

	if in.Tags != nil {
		if err := s.repo.DeleteLinks(ctx, id); err != nil {
			return nil, &apperr.PartialAggregateError{NoteID: id, Err: err}
		}
	}
	if in.URLs != nil {
		if err := s.repo.DeleteURLs(ctx, id); err != nil {
			return nil, &apperr.PartialAggregateError{NoteID: id, Err: err}
		}
	}

	var urls []URLInput
	if in.URLs != nil {
		urls = *in.URLs
	}
	if err := s.writeRelations(ctx, userID, id, tagNames, urls); err != nil {
		return nil, &apperr.PartialAggregateError{NoteID: id, Err: err}
	}

	return s.fetchAfterWrite(ctx, userID, id)
}

// Delete removes the owner's note; the store cascades its links and URLs.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	affected, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return apperr.Store(err)
	}
	if affected == 0 {
		return apperr.NotFound("note", id)
	}
	return nil
}

// Get returns one owned note with its full aggregate.
func (s *Service) Get(ctx context.Context, userID, id string) (*Note, error) {
	n, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, apperr.Store(err)
	}
	if n == nil {
		return nil, apperr.NotFound("note", id)
	}
	return n, nil
}

// List returns the owner's notes matching the filter, newest first, each
// joined with its category, tags, and URLs.
func (s *Service) List(ctx context.Context, userID string, f Filter) (*ListResult, error) {
	if f.Offset > 0 && f.Limit <= 0 {
		f.Limit = 10
	}
	notes, total, err := s.repo.Find(ctx, userID, f)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return &ListResult{
		Notes:   notes,
		Total:   total,
		HasMore: f.Offset+len(notes) < total,
	}, nil
}

// writeRelations fans out the independent sub-operations and joins on the
// full set. Each tag's resolve then link is a dependent pair; distinct tags
// and distinct URLs have no ordering between them.
func (s *Service) writeRelations(ctx context.Context, userID, noteID string, tagNames []string, urls []URLInput) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range tagNames {
		g.Go(func() error {
			tagID, err := s.tags.ResolveOrCreate(gctx, userID, name)
			if err != nil {
				return fmt.Errorf("resolve tag %q > %w", name, err)
			}
			if err := s.repo.InsertLink(gctx, noteID, tagID); err != nil {
				return fmt.Errorf("link tag %q > %w", name, err)
			}
			return nil
		})
	}
	for _, u := range urls {
		g.Go(func() error {
			if err := s.repo.InsertURL(gctx, &URL{
				ID:          uuid.NewString(),
				NoteID:      noteID,
				URL:         u.URL,
				Title:       u.Title,
				Description: u.Description,
			}); err != nil {
				return fmt.Errorf("insert url %q > %w", u.URL, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) checkCategory(ctx context.Context, userID string, categoryID *string) (*string, error) {
	if categoryID == nil || *categoryID == "" {
		return nil, nil
	}
	c, err := s.categories.FindByID(ctx, userID, *categoryID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	if c == nil {
		return nil, apperr.Validationf("category %s does not exist", *categoryID)
	}
	return categoryID, nil
}

func (s *Service) fetchAfterWrite(ctx context.Context, userID, id string) (*Note, error) {
	n, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("note %s written but reload failed > %w", id, err))
	}
	if n == nil {
		return nil, apperr.NotFound("note", id)
	}
	return n, nil
}

// normalizeTagNames trims, case-folds, validates, and de-duplicates the
// requested tag names so a note never links the same tag twice.
func normalizeTagNames(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		n, err := tag.NormalizeName(name)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	return normalized, nil
}

func validateURLs(urls []URLInput) error {
	for _, u := range urls {
		parsed, err := url.Parse(u.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return apperr.Validationf("invalid url %q", u.URL)
		}
	}
	return nil
}
