package models

import (
	"time"

	"github.com/google/uuid"
)

// Allocation records units pushed from one of a distributor's lots to a
// downstream party. A single allocation call may produce several of these
// when it spans lots.
type Allocation struct {
	ID            uuid.UUID `json:"id" db:"id"`
	DistributorID uuid.UUID `json:"distributor_id" db:"distributor_id"`
	RecipientID   uuid.UUID `json:"recipient_id" db:"recipient_id"`
	ProductID     uuid.UUID `json:"product_id" db:"product_id"`
	Quantity      int       `json:"quantity" db:"quantity"`
	LotID         uuid.UUID `json:"lot_id" db:"lot_id"`
	Notes         *string   `json:"notes" db:"notes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
