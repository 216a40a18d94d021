package category

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/blancocp/notex/internal/apperr"
	"github.com/blancocp/notex/internal/database"
)

// Input carries caller-supplied category fields.
type Input struct {
	Name        string  `validate:"required,max=100"`
	Description *string `validate:"-"`
	Color       *string `validate:"omitempty,hexcolor"`
}

// Service exposes category operations scoped to an owner.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService creates a category Service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
	}
}

// List returns the owner's categories ordered by name.
func (s *Service) List(ctx context.Context, userID string) ([]Category, error) {
	categories, err := s.repo.FindAll(ctx, userID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return categories, nil
}

// Create validates and inserts a new category.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*Category, error) {
	if err := s.checkInput(in); err != nil {
		return nil, err
	}

	c := &Category{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if database.IsDuplicateEntry(err) {
			return nil, apperr.Validationf("category %q already exists", in.Name)
		}
		return nil, apperr.Store(err)
	}
	return c, nil
}

// Update validates and replaces the category's fields.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) error {
	if err := s.checkInput(in); err != nil {
		return err
	}

	affected, err := s.repo.Update(ctx, &Category{
		ID:          id,
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
	})
	if err != nil {
		if database.IsDuplicateEntry(err) {
			return apperr.Validationf("category %q already exists", in.Name)
		}
		return apperr.Store(err)
	}
	if affected == 0 {
		return apperr.NotFound("category", id)
	}
	return nil
}

// Delete removes the owner's category. Referencing notes transition to an
// empty category reference at the store level.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	affected, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return apperr.Store(err)
	}
	if affected == 0 {
		return apperr.NotFound("category", id)
	}
	return nil
}

func (s *Service) checkInput(in Input) error {
	if err := s.validate.Struct(in); err != nil {
		return apperr.Validationf("invalid category: %v", err)
	}
	return nil
}
