package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/repository"
)

// AttributeService lists and creates one kind of attribute (tags or ingredients).
type AttributeService struct {
	repo   repository.AttributeRepository
	kind   domain.AttributeKind
	logger zerolog.Logger
}

// NewAttributeService creates a service over repo's kind.
func NewAttributeService(repo repository.AttributeRepository, logger zerolog.Logger) *AttributeService {
	return &AttributeService{
		repo:   repo,
		kind:   repo.Kind(),
		logger: logger.With().Str("service", repo.Kind().Plural()).Logger(),
	}
}

// Kind returns the attribute kind served.
func (s *AttributeService) Kind() domain.AttributeKind {
	return s.kind
}

// List returns the scope's attributes. With assignedOnly, only those linked
// to at least one of the scope's recipes.
func (s *AttributeService) List(ctx context.Context, scope repository.Scope, assignedOnly bool) ([]*domain.Attribute, error) {
	attrs, err := s.repo.List(ctx, scope, assignedOnly)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", scope.UserID).Msg("failed to list attributes")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return attrs, nil
}

// Create validates name and stores a new attribute for the scope's user.
func (s *AttributeService) Create(ctx context.Context, scope repository.Scope, name *string) (*domain.Attribute, error) {
	attr, err := domain.NewAttribute(s.kind, scope.UserID, name)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, scope, attr); err != nil {
		s.logger.Error().Err(err).Int64("user_id", scope.UserID).Msg("failed to create attribute")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Debug().
		Int64("user_id", scope.UserID).
		Int64("id", attr.ID).
		Msg("attribute created")

	return attr, nil
}

// Resolve loads the scope's attributes with the given IDs, ordered by ID.
// Any ID that does not name one of the scope's attributes fails validation
// of field, the same way for missing and foreign IDs.
func (s *AttributeService) Resolve(ctx context.Context, scope repository.Scope, field string, ids []int64) ([]domain.Attribute, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return []domain.Attribute{}, nil
	}

	found, err := s.repo.GetByIDs(ctx, scope, unique)
	if err != nil {
		if errors.Is(err, repository.ErrUnscoped) {
			return nil, err
		}
		s.logger.Error().Err(err).Int64("user_id", scope.UserID).Msg("failed to resolve attributes")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	byID := make(map[int64]*domain.Attribute, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	attrs := make([]domain.Attribute, 0, len(unique))
	for _, id := range unique {
		a, ok := byID[id]
		if !ok {
			return nil, domain.NewValidationError(field, fmt.Sprintf(domain.MsgInvalidPK, id))
		}
		attrs = append(attrs, *a)
	}
	return attrs, nil
}

// dedupe returns the distinct ids in ascending order.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
