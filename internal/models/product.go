package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	SKU         string    `json:"sku" db:"sku"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
	PackSize    int       `json:"pack_size" db:"pack_size"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProductStock is the issuer-level counter of un-requested inventory for one
// product. It is decremented exactly once per approved request and never
// touched by downstream allocation.
type ProductStock struct {
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Units     int       `json:"units" db:"units"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
