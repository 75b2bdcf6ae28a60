package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/metrics"
	"github.com/prn-tf/pantry/internal/repository"
	"github.com/prn-tf/pantry/internal/storage"
)

// RecipeServiceConfig holds image upload settings.
type RecipeServiceConfig struct {
	// Keys controls where uploaded images are stored.
	Keys storage.KeyConfig

	// MaxUploadSize is the largest accepted image in bytes.
	MaxUploadSize int64

	// MaxImagePixels is the largest accepted width*height. Zero disables
	// the check.
	MaxImagePixels int64
}

// RecipeService manages recipes, their tag and ingredient links and images.
type RecipeService struct {
	recipeRepo  repository.RecipeRepository
	tags        *AttributeService
	ingredients *AttributeService
	storage     storage.Backend
	config      RecipeServiceConfig
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewRecipeService creates a new RecipeService. m may be nil.
func NewRecipeService(
	recipeRepo repository.RecipeRepository,
	tags *AttributeService,
	ingredients *AttributeService,
	backend storage.Backend,
	config RecipeServiceConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *RecipeService {
	return &RecipeService{
		recipeRepo:  recipeRepo,
		tags:        tags,
		ingredients: ingredients,
		storage:     backend,
		config:      config,
		metrics:     m,
		logger:      logger.With().Str("service", "recipe").Logger(),
	}
}

// List returns the scope's recipes, newest first.
func (s *RecipeService) List(ctx context.Context, scope repository.Scope, filter domain.RecipeFilter) ([]*domain.Recipe, error) {
	recipes, err := s.recipeRepo.List(ctx, scope, filter)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", scope.UserID).Msg("failed to list recipes")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return recipes, nil
}

// Get returns one of the scope's recipes. Recipes owned by someone else
// are reported as ErrRecipeNotFound.
func (s *RecipeService) Get(ctx context.Context, scope repository.Scope, id int64) (*domain.Recipe, error) {
	recipe, err := s.recipeRepo.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecipeNotFound) {
			return nil, ErrRecipeNotFound
		}
		s.logger.Error().Err(err).Int64("recipe_id", id).Msg("failed to get recipe")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return recipe, nil
}

// Create validates input and stores a new recipe for the scope's user.
func (s *RecipeService) Create(ctx context.Context, scope repository.Scope, input domain.RecipeInput) (*domain.Recipe, error) {
	if err := input.Validate(domain.UpdateFull); err != nil {
		return nil, err
	}

	recipe := &domain.Recipe{}
	input.ApplyTo(recipe, domain.UpdateFull)

	if err := s.resolveLinks(ctx, scope, recipe, input, domain.UpdateFull); err != nil {
		return nil, err
	}

	if err := s.recipeRepo.Create(ctx, scope, recipe); err != nil {
		s.logger.Error().Err(err).Int64("user_id", scope.UserID).Msg("failed to create recipe")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.RecipesCreated.Inc()
	}

	s.logger.Info().
		Int64("user_id", scope.UserID).
		Int64("recipe_id", recipe.ID).
		Msg("recipe created")

	return recipe, nil
}

// Update applies input to an existing recipe. In partial mode omitted
// fields and link sets are kept; in full mode omitted optional fields and
// link sets are cleared.
func (s *RecipeService) Update(ctx context.Context, scope repository.Scope, id int64, input domain.RecipeInput, mode domain.UpdateMode) (*domain.Recipe, error) {
	recipe, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if err := input.Validate(mode); err != nil {
		return nil, err
	}

	input.ApplyTo(recipe, mode)
	if err := s.resolveLinks(ctx, scope, recipe, input, mode); err != nil {
		return nil, err
	}

	if err := s.recipeRepo.Update(ctx, scope, recipe); err != nil {
		if errors.Is(err, domain.ErrRecipeNotFound) {
			return nil, ErrRecipeNotFound
		}
		s.logger.Error().Err(err).Int64("recipe_id", id).Msg("failed to update recipe")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("recipe_id", id).
		Str("mode", mode.String()).
		Msg("recipe updated")

	return recipe, nil
}

// resolveLinks sets the recipe's tag and ingredient sets from input.
func (s *RecipeService) resolveLinks(ctx context.Context, scope repository.Scope, recipe *domain.Recipe, input domain.RecipeInput, mode domain.UpdateMode) error {
	verr := &domain.ValidationError{}

	for _, link := range []struct {
		field  string
		svc    *AttributeService
		ids    *[]int64
		target *[]domain.Attribute
	}{
		{"tags", s.tags, input.TagIDs, &recipe.Tags},
		{"ingredients", s.ingredients, input.IngredientIDs, &recipe.Ingredients},
	} {
		switch {
		case link.ids != nil:
			attrs, err := link.svc.Resolve(ctx, scope, link.field, *link.ids)
			if err != nil {
				var fieldErr *domain.ValidationError
				if errors.As(err, &fieldErr) {
					verr.Merge(fieldErr)
					continue
				}
				return err
			}
			*link.target = attrs
		case mode == domain.UpdateFull:
			*link.target = []domain.Attribute{}
		case *link.target == nil:
			*link.target = []domain.Attribute{}
		}
	}

	return verr.ErrOrNil()
}

// Delete removes a recipe and, best-effort, its image.
func (s *RecipeService) Delete(ctx context.Context, scope repository.Scope, id int64) error {
	recipe, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}

	if err := s.recipeRepo.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, domain.ErrRecipeNotFound) {
			return ErrRecipeNotFound
		}
		s.logger.Error().Err(err).Int64("recipe_id", id).Msg("failed to delete recipe")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if recipe.HasImage() {
		s.deleteImage(ctx, recipe.Image)
	}

	s.logger.Info().Int64("recipe_id", id).Msg("recipe deleted")
	return nil
}

// ImageUpload is an uploaded image file.
type ImageUpload struct {
	// Filename is the client-side name; only its extension is used.
	Filename string

	// Reader yields the file content.
	Reader io.Reader
}

// AttachImage validates upload as an image, stores it under a fresh key and
// makes it the recipe's image. The previous image is deleted best-effort.
func (s *RecipeService) AttachImage(ctx context.Context, scope repository.Scope, id int64, upload ImageUpload) (*domain.Recipe, error) {
	recipe, err := s.Get(ctx, scope, id)
	if err != nil {
		s.recordUploadFailure(metrics.ReasonNotFound)
		return nil, err
	}

	data, err := s.readUpload(upload.Reader)
	if err != nil {
		return nil, err
	}

	info, err := storage.DetectImage(bytes.NewReader(data), s.config.MaxImagePixels)
	if err != nil {
		s.recordUploadFailure(metrics.ReasonInvalidImage)
		s.logger.Debug().Err(err).Int64("recipe_id", id).Msg("rejected image upload")
		return nil, domain.NewValidationError("image", domain.MsgInvalidImage)
	}

	key := storage.ImageKey(s.config.Keys, info.Ext(upload.Filename))
	size := int64(len(data))

	if err := s.storage.Put(ctx, key, bytes.NewReader(data), size, info.ContentType); err != nil {
		s.recordUploadFailure(metrics.ReasonStorage)
		s.logger.Error().Err(err).Str("key", key).Msg("failed to store image")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	previous, err := s.recipeRepo.SetImage(ctx, scope, id, key)
	if err != nil {
		s.deleteImage(ctx, key)
		if errors.Is(err, domain.ErrRecipeNotFound) {
			s.recordUploadFailure(metrics.ReasonNotFound)
			return nil, ErrRecipeNotFound
		}
		s.recordUploadFailure(metrics.ReasonStorage)
		s.logger.Error().Err(err).Int64("recipe_id", id).Msg("failed to record image")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if previous != "" && previous != key {
		s.deleteImage(ctx, previous)
	}

	if s.metrics != nil {
		s.metrics.RecordImageUpload(size)
	}

	s.logger.Info().
		Int64("recipe_id", id).
		Str("key", key).
		Str("format", info.Format).
		Int64("size", size).
		Msg("recipe image attached")

	recipe.Image = key
	return recipe, nil
}

// ImageURL returns the public URL of a stored image key, or "" for none.
func (s *RecipeService) ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return s.storage.URL(key)
}

func (s *RecipeService) readUpload(r io.Reader) ([]byte, error) {
	if s.config.MaxUploadSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, s.config.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.config.MaxUploadSize {
		s.recordUploadFailure(metrics.ReasonTooLarge)
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func (s *RecipeService) deleteImage(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete image")
	}
}

func (s *RecipeService) recordUploadFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordImageUploadFailure(reason)
	}
}
