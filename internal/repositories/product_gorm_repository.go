package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"productapi/internal/models"

	"gorm.io/gorm"
)

const sqliteDialect = "sqlite"

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all products from the database in insertion (id) order.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := r.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %d: %w", id, models.ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return &product, nil
}

// ExistsByID reports whether a product row exists for id.
func (r *GORMProductRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check product %d: %w", id, err)
	}
	return count > 0, nil
}

// FindByNameContaining returns products whose name contains fragment, ignoring case.
// SQLite's LOWER only folds ASCII, so on SQLite the match is done here with
// Unicode case folding instead.
func (r *GORMProductRepository) FindByNameContaining(ctx context.Context, fragment string) ([]models.Product, error) {
	needle := strings.ToLower(fragment)
	db := r.db.WithContext(ctx)

	if db.Dialector.Name() == sqliteDialect {
		all, err := r.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to search products by name: %w", err)
		}
		products := []models.Product{}
		for _, p := range all {
			if strings.Contains(strings.ToLower(p.Name), needle) {
				products = append(products, p)
			}
		}
		return products, nil
	}

	products := []models.Product{}
	err := db.
		Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(needle)+"%").
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search products by name: %w", err)
	}
	return products, nil
}

// Save inserts a product when its ID is zero and otherwise updates the
// stored row. Updating a row that no longer exists fails with
// models.ErrProductNotFound rather than inserting it again.
func (r *GORMProductRepository) Save(ctx context.Context, product *models.Product) error {
	db := r.db.WithContext(ctx)
	if product.ID == 0 {
		if err := db.Create(product).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return nil
	}

	// a map so zero values are written too
	res := db.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":  product.Name,
			"price": product.Price,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update product %d: %w", product.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d not updated: %w", product.ID, models.ErrProductNotFound)
	}
	return nil
}

// SaveAll inserts products with a single batch statement.
func (r *GORMProductRepository) SaveAll(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&products).Error; err != nil {
		return fmt.Errorf("failed to create %d products: %w", len(products), err)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d not deleted: %w", id, models.ErrProductNotFound)
	}
	return nil
}

// Transaction runs fn inside a database transaction.
func (r *GORMProductRepository) Transaction(ctx context.Context, fn func(repo ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMProductRepository{db: tx})
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
