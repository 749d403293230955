package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	appErrors "github.com/halcyon-intra/portal-events-api/pkg/errors"
)

type resourceRepository interface {
	List(ctx context.Context) ([]models.Resource, error)
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	FindByName(ctx context.Context, name string) ([]models.Resource, error)
	Create(ctx context.Context, res *models.Resource) error
}

// CreateResourceRequest describes the payload for creating a location.
type CreateResourceRequest struct {
	Name            string `json:"name" validate:"required"`
	Address         string `json:"address"`
	DefaultCapacity int    `json:"default_capacity" validate:"gte=0"`
	MapRef          string `json:"map_ref"`
}

// ResourceService manages bookable locations.
type ResourceService struct {
	repo      resourceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService instantiates ResourceService.
func NewResourceService(repo resourceRepository, validate *validator.Validate, logger *zap.Logger) *ResourceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{repo: repo, validator: validate, logger: logger}
}

// List returns all locations.
func (s *ResourceService) List(ctx context.Context) ([]models.Resource, error) {
	resources, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	return resources, nil
}

// Create adds a location after the advisory duplicate-name check. The check
// and the insert are two separate steps, not one transaction: concurrent
// creators can race to duplicate a name, which is tolerated because a
// duplicate location is a human-correctable nuisance.
func (s *ResourceService) Create(ctx context.Context, req CreateResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	name := strings.TrimSpace(req.Name)

	existing, err := s.FindExistingOrNone(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a location with this name already exists")
	}

	res := &models.Resource{
		Name:            name,
		Address:         strings.TrimSpace(req.Address),
		DefaultCapacity: req.DefaultCapacity,
		MapRef:          req.MapRef,
	}
	if res.MapRef == "" && res.Address != "" {
		res.MapRef = deriveMapRef(res.Address)
	}

	if err := s.repo.Create(ctx, res); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource")
	}
	return res, nil
}

// FindExistingOrNone returns the oldest location with the exact name, or nil
// when there is none.
func (s *ResourceService) FindExistingOrNone(ctx context.Context, name string) (*models.Resource, error) {
	matches, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up resource by name")
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// FindOrCreateByName resolves a typed-in location name during event save,
// creating the location when no exact match exists. Same advisory two-step
// as Create.
func (s *ResourceService) FindOrCreateByName(ctx context.Context, name string) (*models.Resource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "location name is required")
	}

	existing, err := s.FindExistingOrNone(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	res := &models.Resource{Name: name}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource")
	}
	s.logger.Info("created resource implicitly during event save", zap.String("resource_id", res.ID), zap.String("name", name))
	return res, nil
}

// Lookup resolves a location with an ordered fallback policy: by id first,
// then by exact name, then by name plus address tiebreak when the name is
// ambiguous. The boolean reports whether anything was found.
func (s *ResourceService) Lookup(ctx context.Context, id, name, address string) (*models.Resource, bool, error) {
	if id != "" {
		res, err := s.repo.FindByID(ctx, id)
		if err == nil {
			return res, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up resource")
		}
	}

	if name == "" {
		return nil, false, nil
	}
	matches, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up resource by name")
	}
	switch len(matches) {
	case 0:
		return nil, false, nil
	case 1:
		return &matches[0], true, nil
	default:
		if address != "" {
			for i := range matches {
				if strings.EqualFold(matches[i].Address, address) {
					return &matches[i], true, nil
				}
			}
		}
		return &matches[0], true, nil
	}
}

func deriveMapRef(address string) string {
	return "https://maps.google.com/?q=" + url.QueryEscape(address)
}
