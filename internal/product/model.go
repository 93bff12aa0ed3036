package product

import (
	"cafe-pos/internal/queue"

	"github.com/google/uuid"
)

type Product struct {
	ID                  uuid.UUID              `json:"id"`
	Name                string                 `json:"name"`
	Price               float64                `json:"price"`
	RequiresPreparation bool                   `json:"requires_preparation"`
	PreparationType     *queue.PreparationType `json:"preparation_type,omitempty"`
}

// RelevantFor reports whether units of p are prepared in the queue of type t.
func (p *Product) RelevantFor(t queue.PreparationType) bool {
	return p.RequiresPreparation && p.PreparationType != nil && *p.PreparationType == t
}

// Index maps products by id.
func Index(products []*Product) map[uuid.UUID]*Product {
	m := make(map[uuid.UUID]*Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}
