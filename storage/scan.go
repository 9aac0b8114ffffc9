package storage

import (
	"fmt"
	"math"

	"products-api/models"

	"github.com/shopspring/decimal"
)

// finiteDecimal scans like decimal.NullDecimal but reports a REAL column
// holding Inf or NaN as an error. decimal.NewFromFloat panics on those, and a
// panic inside Scan leaves the result rows open.
type finiteDecimal struct {
	decimal.NullDecimal
}

func (d *finiteDecimal) Scan(value interface{}) error {
	if f, ok := value.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return fmt.Errorf("non-finite decimal %v in products table", f)
	}
	return d.NullDecimal.Scan(value)
}

// productRow is the scan target for product queries.
type productRow struct {
	ID          int64         `gorm:"column:id"`
	Name        *string       `gorm:"column:name"`
	Manufacture *string       `gorm:"column:manufacture"`
	Output      finiteDecimal `gorm:"column:output"`
	Price       *int64        `gorm:"column:price"`
	Width       finiteDecimal `gorm:"column:width"`
	Height      finiteDecimal `gorm:"column:height"`
}

func (r productRow) product() models.Product {
	return models.Product{
		ID:          r.ID,
		Name:        r.Name,
		Manufacture: r.Manufacture,
		Output:      r.Output.NullDecimal,
		Price:       r.Price,
		Width:       r.Width.NullDecimal,
		Height:      r.Height.NullDecimal,
	}
}
