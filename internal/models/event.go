package models

import (
	"time"

	"github.com/google/uuid"
)

// Product lifecycle event types.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// ProductEvent is published after a product mutation has been committed.
type ProductEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ProductID  int64     `json:"product_id"`
	Product    *Product  `json:"product,omitempty"` // nil for deletions
	OccurredAt time.Time `json:"occurred_at"`
}

// NewProductEvent builds an event with a fresh id.
func NewProductEvent(eventType string, productID int64, product *Product) ProductEvent {
	var snapshot *Product
	if product != nil {
		cp := *product
		snapshot = &cp
	}
	return ProductEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		ProductID:  productID,
		Product:    snapshot,
		OccurredAt: time.Now().UTC(),
	}
}
