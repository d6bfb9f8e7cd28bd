package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nordrail/storefront-api/internal/models"
	appErrors "github.com/nordrail/storefront-api/pkg/errors"
)

type itemStore interface {
	List(ctx context.Context) ([]models.Item, error)
	Create(ctx context.Context, item *models.Item) error
}

// CatalogService serves the storefront item listing.
type CatalogService struct {
	items     itemStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(items itemStore, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CatalogService{items: items, validator: validate, logger: logger}
}

// List returns all catalog items.
func (s *CatalogService) List(ctx context.Context) ([]models.Item, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list items")
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}

// Create adds a catalog item.
func (s *CatalogService) Create(ctx context.Context, req models.CreateItemRequest) (*models.Item, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}

	item := &models.Item{Name: req.Name, PriceCents: req.PriceCents}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create item")
	}
	return item, nil
}
