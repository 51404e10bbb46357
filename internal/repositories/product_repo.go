package repositories

import (
	"context"

	"productapi/internal/models"
)

// ProductRepository defines the interface for product data access.
// GetByID and Delete return models.ErrProductNotFound for unknown ids.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	FindByNameContaining(ctx context.Context, fragment string) ([]models.Product, error)
	// Save inserts the product when its ID is zero and updates it otherwise.
	Save(ctx context.Context, product *models.Product) error
	// SaveAll inserts every product in one statement, assigning ids in order.
	SaveAll(ctx context.Context, products []models.Product) error
	Delete(ctx context.Context, id int64) error
	// Transaction runs fn against a repository bound to a single transaction.
	// Returning an error from fn rolls every change back.
	Transaction(ctx context.Context, fn func(repo ProductRepository) error) error
}
