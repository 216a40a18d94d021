package tag

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/blancocp/notex/internal/apperr"
	"github.com/blancocp/notex/internal/database"
)

const searchLimit = 10

var nameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizeName trims and case-folds a tag name and checks its charset.
func NormalizeName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "", apperr.Validationf("tag name is required")
	}
	if !nameRe.MatchString(normalized) {
		return "", apperr.Validationf("tag name %q may only contain letters, digits, hyphens and underscores", name)
	}
	return normalized, nil
}

// Input carries caller-supplied tag fields. Name is normalized before use.
type Input struct {
	Name        string
	Description *string `validate:"-"`
	Color       *string `validate:"omitempty,hexcolor"`
}

// Service exposes tag operations scoped to an owner.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService creates a tag Service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
	}
}

// List returns the owner's tags ordered by name.
func (s *Service) List(ctx context.Context, userID string) ([]Tag, error) {
	tags, err := s.repo.FindAll(ctx, userID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return tags, nil
}

// Create validates and inserts a new tag. A duplicate name for the same
// owner fails, it is never silently merged.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*Tag, error) {
	name, err := s.checkInput(&in)
	if err != nil {
		return nil, err
	}

	t := &Tag{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: in.Description,
		Color:       in.Color,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if database.IsDuplicateEntry(err) {
			return nil, apperr.Validationf("tag %q already exists", name)
		}
		return nil, apperr.Store(err)
	}
	return t, nil
}

// Update validates and replaces the tag's fields.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) error {
	name, err := s.checkInput(&in)
	if err != nil {
		return err
	}

	affected, err := s.repo.Update(ctx, &Tag{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: in.Description,
		Color:       in.Color,
	})
	if err != nil {
		if database.IsDuplicateEntry(err) {
			return apperr.Validationf("tag %q already exists", name)
		}
		return apperr.Store(err)
	}
	if affected == 0 {
		return apperr.NotFound("tag", id)
	}
	return nil
}

// Delete removes the owner's tag.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	affected, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return apperr.Store(err)
	}
	if affected == 0 {
		return apperr.NotFound("tag", id)
	}
	return nil
}

// Search returns tags matching the fragment for autocomplete. It degrades
// to an empty result on store failure instead of propagating the error.
func (s *Service) Search(ctx context.Context, userID, query string) []Tag {
	tags, err := s.repo.Search(ctx, userID, strings.ToLower(strings.TrimSpace(query)), searchLimit)
	if err != nil {
		slog.WarnContext(ctx, "tag search failed", "error", err)
		return nil
	}
	return tags
}

func (s *Service) checkInput(in *Input) (string, error) {
	name, err := NormalizeName(in.Name)
	if err != nil {
		return "", err
	}
	if err := s.validate.Struct(in); err != nil {
		return "", apperr.Validationf("invalid tag: %v", err)
	}
	return name, nil
}
