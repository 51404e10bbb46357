package repositories

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"productapi/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// Ids are assigned from a sequence starting at 1 and GetAll returns
// products in insertion order.
type MockProductRepository struct {
	products map[int64]models.Product
	order    []int64
	nextID   int64
	mu       sync.RWMutex
	txMu     sync.Mutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[int64]models.Product),
		nextID:   1,
	}
}

// GetAll returns all products.
func (r *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.order))
	for _, id := range r.order {
		productList = append(productList, r.products[id])
	}
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %d: %w", id, models.ErrProductNotFound)
	}
	return &product, nil
}

// ExistsByID reports whether a product is stored under id.
func (r *MockProductRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.products[id]
	return ok, nil
}

// FindByNameContaining returns products whose name contains fragment, ignoring case.
func (r *MockProductRepository) FindByNameContaining(ctx context.Context, fragment string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(fragment)
	productList := []models.Product{}
	for _, id := range r.order {
		p := r.products[id]
		if strings.Contains(strings.ToLower(p.Name), needle) {
			productList = append(productList, p)
		}
	}
	return productList, nil
}

// Save adds a new product when its ID is zero and otherwise replaces the
// stored one. Replacing an ID that is not stored fails with
// models.ErrProductNotFound.
func (r *MockProductRepository) Save(ctx context.Context, product *models.Product) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	return r.save(product)
}

// SaveAll adds every product, assigning ids in slice order.
func (r *MockProductRepository) SaveAll(ctx context.Context, products []models.Product) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.saveAll(products)
	return nil
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(ctx context.Context, id int64) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	return r.delete(id)
}

// Transaction runs fn while holding the write lock, so writes from outside
// wait for it to finish, and restores the previous state when fn fails.
// Reads from outside are not blocked and may see uncommitted writes.
func (r *MockProductRepository) Transaction(ctx context.Context, fn func(repo ProductRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	products := make(map[int64]models.Product, len(r.products))
	for id, p := range r.products {
		products[id] = p
	}
	order := append([]int64(nil), r.order...)
	nextID := r.nextID
	r.mu.RUnlock()

	if err := fn(&mockProductTx{repo: r}); err != nil {
		r.mu.Lock()
		r.products, r.order, r.nextID = products, order, nextID
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *MockProductRepository) save(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == 0 {
		product.ID = r.nextID
		r.nextID++
		r.order = append(r.order, product.ID)
	} else if _, exists := r.products[product.ID]; !exists {
		return fmt.Errorf("product with ID %d not updated: %w", product.ID, models.ErrProductNotFound)
	}
	r.products[product.ID] = *product
	return nil
}

func (r *MockProductRepository) saveAll(products []models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range products {
		products[i].ID = r.nextID
		r.nextID++
		r.order = append(r.order, products[i].ID)
		r.products[products[i].ID] = products[i]
	}
}

func (r *MockProductRepository) delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product with ID %d not deleted: %w", id, models.ErrProductNotFound)
	}
	delete(r.products, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// mockProductTx is the repository handed to a transaction's fn. Its writes
// skip txMu, which the enclosing Transaction already holds.
type mockProductTx struct {
	repo *MockProductRepository
}

func (t *mockProductTx) GetAll(ctx context.Context) ([]models.Product, error) {
	return t.repo.GetAll(ctx)
}

func (t *mockProductTx) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	return t.repo.GetByID(ctx, id)
}

func (t *mockProductTx) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return t.repo.ExistsByID(ctx, id)
}

func (t *mockProductTx) FindByNameContaining(ctx context.Context, fragment string) ([]models.Product, error) {
	return t.repo.FindByNameContaining(ctx, fragment)
}

func (t *mockProductTx) Save(ctx context.Context, product *models.Product) error {
	return t.repo.save(product)
}

func (t *mockProductTx) SaveAll(ctx context.Context, products []models.Product) error {
	t.repo.saveAll(products)
	return nil
}

func (t *mockProductTx) Delete(ctx context.Context, id int64) error {
	return t.repo.delete(id)
}

// Transaction joins the enclosing transaction.
func (t *mockProductTx) Transaction(ctx context.Context, fn func(repo ProductRepository) error) error {
	return fn(t)
}
