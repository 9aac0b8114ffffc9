package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var createProductsTable = map[string]string{
	dialectSQLite: `
		CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			manufacture TEXT,
			output REAL,
			price INTEGER,
			width REAL,
			height REAL
		)`,
	dialectPostgres: `
		CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT,
			manufacture TEXT,
			output NUMERIC,
			price BIGINT,
			width NUMERIC,
			height NUMERIC
		)`,
}

// SeedProduct is inserted when the products table is found empty.
var SeedProduct = struct {
	Name        string
	Manufacture string
	Output      decimal.Decimal
	Price       int64
	Width       decimal.Decimal
	Height      decimal.Decimal
}{
	Name:        "Air Source Heat Pump",
	Manufacture: "Generic Manufacturer",
	Output:      decimal.RequireFromString("12.5"),
	Price:       45000,
	Width:       decimal.NewFromInt(80),
	Height:      decimal.NewFromInt(120),
}

// Initializer prepares the products table before the service takes traffic.
type Initializer struct {
	db *gorm.DB
}

func NewInitializer(db *gorm.DB) *Initializer {
	return &Initializer{db: db}
}

// Initialize creates the products table if it is missing and inserts the seed
// row if the table is empty. It is safe to run on every start.
func (i *Initializer) Initialize(ctx context.Context) error {
	db := i.db.WithContext(ctx)

	ddl, ok := createProductsTable[i.db.Dialector.Name()]
	if !ok {
		return fmt.Errorf("unsupported dialect: %s", i.db.Dialector.Name())
	}
	if err := db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM products").Scan(&count).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}

	if count == 0 {
		seed := SeedProduct
		err := db.Exec(
			"INSERT INTO products (name, manufacture, output, price, width, height) VALUES (?, ?, ?, ?, ?, ?)",
			seed.Name, seed.Manufacture, seed.Output, seed.Price, seed.Width, seed.Height,
		).Error
		if err != nil {
			return fmt.Errorf("failed to seed products: %w", err)
		}
		log.Println("Database seeded with initial data")
	}

	log.Println("Database initialized")
	return nil
}
