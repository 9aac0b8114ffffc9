package models

import (
	"time"

	"github.com/google/uuid"
)

type ProductEventType string

const (
	ProductCreated ProductEventType = "product.created"
	ProductUpdated ProductEventType = "product.updated"
	ProductDeleted ProductEventType = "product.deleted"
)

// ProductEvent is published after a product is written. Product is nil for
// deletions.
type ProductEvent struct {
	EventID    string           `json:"event_id"`
	Type       ProductEventType `json:"type"`
	ProductID  int64            `json:"product_id"`
	Product    *Product         `json:"product,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewProductEvent(eventType ProductEventType, productID int64, product *Product) ProductEvent {
	return ProductEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		ProductID:  productID,
		Product:    product,
		OccurredAt: time.Now().UTC(),
	}
}
