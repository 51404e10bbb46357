package services

import (
	"context"
	"fmt"
	"strings"

	"productapi/internal/models"
	"productapi/internal/repositories"
	"productapi/internal/validation"

	"github.com/rs/zerolog"
)

// EventPublisher delivers product lifecycle events to other systems.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event models.ProductEvent) error
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	validator *validation.ProductValidator
	publisher EventPublisher
	logger    zerolog.Logger
}

// NewProductService creates a new ProductService. publisher may be nil, in
// which case no events are emitted.
func NewProductService(
	repo repositories.ProductRepository,
	validator *validation.ProductValidator,
	publisher EventPublisher,
	logger zerolog.Logger,
) *ProductService {
	return &ProductService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		logger:    logger.With().Str("service", "product").Logger(),
	}
}

// CreateProduct validates and stores a new product. Any id on the input is
// discarded so the store always assigns a fresh one.
func (s *ProductService) CreateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	product.ID = 0

	if err := s.validator.ValidateProduct(product); err != nil {
		s.logger.Debug().Err(err).Msg("rejected invalid product")
		return nil, err
	}

	if err := s.repo.Save(ctx, &product); err != nil {
		s.logger.Error().Err(err).Str("name", product.Name).Msg("failed to create product")
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info().Int64("product_id", product.ID).Msg("product created")
	s.publish(ctx, models.EventProductCreated, product.ID, &product)

	return &product, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	if id <= 0 {
		return nil, invalidID(id)
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// GetAllProducts retrieves all products in the order the store returns them.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to get all products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// SearchProductsByName returns products whose name contains fragment,
// ignoring case. A blank fragment matches everything.
func (s *ProductService) SearchProductsByName(ctx context.Context, fragment string) ([]models.Product, error) {
	if strings.TrimSpace(fragment) == "" {
		return s.GetAllProducts(ctx)
	}

	products, err := s.repo.FindByNameContaining(ctx, fragment)
	if err != nil {
		s.logger.Error().Err(err).Str("fragment", fragment).Msg("failed to search products")
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// ExistsByID reports whether a product exists. Ids that can never exist are
// answered without asking the store.
func (s *ProductService) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return s.repo.ExistsByID(ctx, id)
}

// UpdateProduct merges details onto the stored product: a nil field keeps
// the stored value. The merged record is not validated here; callers are
// expected to have validated details already.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, details models.ProductRequest) (*models.Product, error) {
	if id <= 0 {
		return nil, invalidID(id)
	}

	var updated *models.Product
	err := s.repo.Transaction(ctx, func(repo repositories.ProductRepository) error {
		product, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if details.Name != nil {
			product.Name = *details.Name
		}
		if details.Price != nil {
			product.Price = *details.Price
		}

		if err := repo.Save(ctx, product); err != nil {
			return fmt.Errorf("failed to update product %d: %w", id, err)
		}
		updated = product
		return nil
	})
	if err != nil {
		s.logFailure(err, id, "failed to update product")
		return nil, err
	}

	s.logger.Info().Int64("product_id", id).Msg("product updated")
	s.publish(ctx, models.EventProductUpdated, id, updated)

	return updated, nil
}

// PartialUpdateProduct applies the recognised entries of updates to the
// stored product. Unknown keys and values of the wrong type are ignored.
// The merged product must still be valid.
func (s *ProductService) PartialUpdateProduct(ctx context.Context, id int64, updates map[string]interface{}) (*models.Product, error) {
	if id <= 0 {
		return nil, invalidID(id)
	}

	var updated *models.Product
	err := s.repo.Transaction(ctx, func(repo repositories.ProductRepository) error {
		product, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		applied, ignored := applyPatch(product, updates)
		s.logger.Debug().
			Int64("product_id", id).
			Strs("applied", applied).
			Strs("ignored", ignored).
			Msg("applying partial update")

		if err := s.validator.ValidateProduct(*product); err != nil {
			return err
		}

		if err := repo.Save(ctx, product); err != nil {
			return fmt.Errorf("failed to update product %d: %w", id, err)
		}
		updated = product
		return nil
	})
	if err != nil {
		s.logFailure(err, id, "failed to partially update product")
		return nil, err
	}

	s.logger.Info().Int64("product_id", id).Msg("product patched")
	s.publish(ctx, models.EventProductUpdated, id, updated)

	return updated, nil
}

// DeleteProduct permanently removes a product.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalidID(id)
	}

	err := s.repo.Transaction(ctx, func(repo repositories.ProductRepository) error {
		if _, err := repo.GetByID(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		s.logFailure(err, id, "failed to delete product")
		return err
	}

	s.logger.Info().Int64("product_id", id).Msg("product deleted")
	s.publish(ctx, models.EventProductDeleted, id, nil)

	return nil
}

// CreateProducts stores every product as a new record, all or nothing, and
// returns them in input order. Callers reject empty batches; an empty input
// here is simply an empty result.
func (s *ProductService) CreateProducts(ctx context.Context, products []models.Product) ([]models.Product, error) {
	if len(products) == 0 {
		return []models.Product{}, nil
	}

	batch := make([]models.Product, len(products))
	for i, p := range products {
		p.ID = 0
		batch[i] = p
	}

	if err := s.validator.ValidateProducts(batch); err != nil {
		s.logger.Debug().Err(err).Int("count", len(batch)).Msg("rejected invalid batch")
		return nil, err
	}

	err := s.repo.Transaction(ctx, func(repo repositories.ProductRepository) error {
		return repo.SaveAll(ctx, batch)
	})
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(batch)).Msg("failed to create products")
		return nil, fmt.Errorf("failed to create products: %w", err)
	}

	s.logger.Info().Int("count", len(batch)).Msg("products created")
	for i := range batch {
		s.publish(ctx, models.EventProductCreated, batch[i].ID, &batch[i])
	}

	return batch, nil
}

func (s *ProductService) publish(ctx context.Context, eventType string, id int64, product *models.Product) {
	if s.publisher == nil {
		return
	}
	event := models.NewProductEvent(eventType, id, product)
	if err := s.publisher.PublishProductEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Int64("product_id", id).
			Msg("failed to publish product event")
	}
}

func (s *ProductService) logFailure(err error, id int64, msg string) {
	switch {
	case isNotFound(err):
		s.logger.Debug().Int64("product_id", id).Msg("product not found")
	case models.IsValidationError(err):
		s.logger.Debug().Err(err).Int64("product_id", id).Msg("rejected invalid product")
	default:
		s.logger.Error().Err(err).Int64("product_id", id).Msg(msg)
	}
}
