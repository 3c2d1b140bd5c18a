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

// TrainerRepositoryInterface abstracts trainer persistence.
type TrainerRepositoryInterface interface {
	List(ctx context.Context) ([]models.Trainer, error)
	FindByID(ctx context.Context, id string) (*models.Trainer, error)
	Create(ctx context.Context, trainer *models.Trainer) error
}

// TrainerService manages the thin trainer registry.
type TrainerService struct {
	trainers  TrainerRepositoryInterface
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTrainerService constructs the service.
func NewTrainerService(trainers TrainerRepositoryInterface, logger *zap.Logger) *TrainerService {
	return &TrainerService{trainers: trainers, validator: validator.New(), logger: logger}
}

// CreateTrainerRequest registers a trainer.
type CreateTrainerRequest struct {
	FullName string `json:"full_name" validate:"required"`
}

// List returns all trainers.
func (s *TrainerService) List(ctx context.Context) ([]models.Trainer, error) {
	trainers, err := s.trainers.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list trainers")
	}
	return trainers, nil
}

// Get returns one trainer.
func (s *TrainerService) Get(ctx context.Context, id string) (*models.Trainer, error) {
	trainer, err := s.trainers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load trainer")
	}
	return trainer, nil
}

// Create registers a new active trainer.
func (s *TrainerService) Create(ctx context.Context, req CreateTrainerRequest) (*models.Trainer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trainer")
	}
	trainer := &models.Trainer{FullName: req.FullName, Active: true}
	if err := s.trainers.Create(ctx, trainer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create trainer")
	}
	s.logger.Sugar().Infow("trainer created", "trainer_id", trainer.ID)
	return trainer, nil
}
