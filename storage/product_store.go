package storage

import (
	"context"
	"errors"
	"fmt"

	"products-api/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no product matches the requested id.
	ErrNotFound = errors.New("product not found")
)

const productColumns = "id, name, manufacture, output, price, width, height"

// ProductStore runs one parameterised statement per call against the products
// table. It holds no state besides the shared connection pool.
type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// List returns every product ordered by ascending id.
func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	var rows []productRow
	err := s.db.WithContext(ctx).
		Raw("SELECT " + productColumns + " FROM products ORDER BY id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.product())
	}
	return products, nil
}

func (s *ProductStore) Get(ctx context.Context, id int64) (*models.Product, error) {
	var row productRow
	result := s.db.WithContext(ctx).
		Raw("SELECT "+productColumns+" FROM products WHERE id = ?", id).
		Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	product := row.product()
	return &product, nil
}

// Create inserts a product and returns it with its generated id.
func (s *ProductStore) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	var row productRow
	result := s.db.WithContext(ctx).
		Raw("INSERT INTO products (name, manufacture, output, price, width, height) VALUES (?, ?, ?, ?, ?, ?) RETURNING "+productColumns, in.Fields()...).
		Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, errors.New("failed to create product: insert returned no row")
	}
	product := row.product()
	return &product, nil
}

// Update replaces all six mutable fields of the product; nil input fields are
// written as NULL.
func (s *ProductStore) Update(ctx context.Context, id int64, in models.ProductInput) (*models.Product, error) {
	var row productRow
	args := append(in.Fields(), id)
	result := s.db.WithContext(ctx).
		Raw("UPDATE products SET name = ?, manufacture = ?, output = ?, price = ?, width = ?, height = ? WHERE id = ? RETURNING "+productColumns, args...).
		Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	product := row.product()
	return &product, nil
}

func (s *ProductStore) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Exec("DELETE FROM products WHERE id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored products.
func (s *ProductStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Raw("SELECT COUNT(*) FROM products").Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}
