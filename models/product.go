package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

func init() {
	// output, width and height travel as JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a row of the products table. Every field but ID is nullable.
type Product struct {
	ID          int64               `json:"id" gorm:"column:id"`
	Name        *string             `json:"name" gorm:"column:name"`
	Manufacture *string             `json:"manufacture" gorm:"column:manufacture"`
	Output      decimal.NullDecimal `json:"output" gorm:"column:output"`
	Price       *int64              `json:"price" gorm:"column:price"`
	Width       decimal.NullDecimal `json:"width" gorm:"column:width"`
	Height      decimal.NullDecimal `json:"height" gorm:"column:height"`
}

// ProductInput carries the six mutable fields of a create or update request.
// A key that is absent and a key set to null decode to the same zero value,
// which the store writes as NULL.
type ProductInput struct {
	Name        *string             `json:"name"`
	Manufacture *string             `json:"manufacture"`
	Output      decimal.NullDecimal `json:"output"`
	Price       *int64              `json:"price"`
	Width       decimal.NullDecimal `json:"width"`
	Height      decimal.NullDecimal `json:"height"`
}

// Fields returns the input as positional statement arguments in column order:
// name, manufacture, output, price, width, height.
func (in ProductInput) Fields() []interface{} {
	return []interface{}{in.Name, in.Manufacture, in.Output, in.Price, in.Width, in.Height}
}

// float64 holds magnitudes from about 1e-324 to 1.8e308.
const (
	maxDecimalMagnitude = 309
	minDecimalMagnitude = -324
)

// Validate rejects decimals that have no finite, non-zero float64 form. The
// sqlite store keeps output, width and height as REAL, which would turn them
// into Inf or silently into 0.
func (in ProductInput) Validate() error {
	decimals := []struct {
		name  string
		value decimal.NullDecimal
	}{
		{"output", in.Output},
		{"width", in.Width},
		{"height", in.Height},
	}
	for _, d := range decimals {
		if !d.value.Valid || d.value.Decimal.IsZero() {
			continue
		}
		if !fitsFloat64(d.value.Decimal) {
			return fmt.Errorf("%s is out of range: %s", d.name, d.value.Decimal.String())
		}
	}
	return nil
}

func fitsFloat64(d decimal.Decimal) bool {
	// checked before converting so absurd exponents never get expanded
	magnitude := int64(d.Exponent()) + int64(d.NumDigits())
	if magnitude > maxDecimalMagnitude || magnitude < minDecimalMagnitude {
		return false
	}
	f := d.InexactFloat64()
	return !math.IsInf(f, 0) && f != 0
}

// MessageResponse is the body of a successful delete.
type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
