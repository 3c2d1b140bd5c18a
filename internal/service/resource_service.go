package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
)

// ResourceRepositoryInterface abstracts resource persistence.
type ResourceRepositoryInterface interface {
	List(ctx context.Context) ([]models.Resource, error)
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, resource *models.Resource) error
	Update(ctx context.Context, resource *models.Resource) error
}

// ResourceService manages the shared resource registry.
type ResourceService struct {
	resources ResourceRepositoryInterface
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs the service.
func NewResourceService(resources ResourceRepositoryInterface, logger *zap.Logger) *ResourceService {
	return &ResourceService{resources: resources, validator: validator.New(), logger: logger}
}

// CreateResourceRequest registers a new shared resource.
type CreateResourceRequest struct {
	Name          string `json:"name" validate:"required"`
	TotalQuantity int    `json:"total_quantity" validate:"required,gt=0"`
}

// UpdateResourceRequest modifies a resource. The availability flag gates new
// bookings only; confirmed bookings are unaffected.
type UpdateResourceRequest struct {
	Name          string `json:"name" validate:"required"`
	TotalQuantity int    `json:"total_quantity" validate:"required,gt=0"`
	Available     bool   `json:"available"`
}

// List returns all resources.
func (s *ResourceService) List(ctx context.Context) ([]models.Resource, error) {
	resources, err := s.resources.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list resources")
	}
	return resources, nil
}

// Get returns one resource.
func (s *ResourceService) Get(ctx context.Context, id string) (*models.Resource, error) {
	resource, err := s.resources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load resource")
	}
	return resource, nil
}

// Create registers a new resource, available by default.
func (s *ResourceService) Create(ctx context.Context, req CreateResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource")
	}
	resource := &models.Resource{Name: req.Name, TotalQuantity: req.TotalQuantity, Available: true}
	if err := s.resources.Create(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create resource")
	}
	s.logger.Sugar().Infow("resource created", "resource_id", resource.ID, "name", resource.Name)
	return resource, nil
}

// Update modifies an existing resource.
func (s *ResourceService) Update(ctx context.Context, id string, req UpdateResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource")
	}
	resource, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resource.Name = req.Name
	resource.TotalQuantity = req.TotalQuantity
	resource.Available = req.Available
	if err := s.resources.Update(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update resource")
	}
	return resource, nil
}
