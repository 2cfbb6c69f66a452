package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lot is one approved request's worth of entitlement. Lots for the same
// distributor and product are never merged; allocation consumes them
// oldest-first.
type Lot struct {
	ID              uuid.UUID `json:"id" db:"id"`
	DistributorID   uuid.UUID `json:"distributor_id" db:"distributor_id"`
	ProductID       uuid.UUID `json:"product_id" db:"product_id"`
	TotalUnits      int       `json:"total_units" db:"total_units"`
	AllocatedUnits  int       `json:"allocated_units" db:"allocated_units"`
	AvailableUnits  int       `json:"available_units" db:"available_units"`
	SourceRequestID uuid.UUID `json:"source_request_id" db:"source_request_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// CheckConsistency verifies the permanent lot invariant:
// available == total - allocated and 0 <= allocated <= total.
func (l *Lot) CheckConsistency() error {
	if l.AllocatedUnits < 0 || l.AllocatedUnits > l.TotalUnits {
		return fmt.Errorf("lot %s: allocated_units %d outside [0, %d]", l.ID, l.AllocatedUnits, l.TotalUnits)
	}
	if l.AvailableUnits != l.TotalUnits-l.AllocatedUnits {
		return fmt.Errorf("lot %s: available_units %d != total %d - allocated %d", l.ID, l.AvailableUnits, l.TotalUnits, l.AllocatedUnits)
	}
	return nil
}

// LedgerSummary aggregates a distributor's lots for one product.
type LedgerSummary struct {
	DistributorID  uuid.UUID `json:"distributor_id"`
	ProductID      uuid.UUID `json:"product_id"`
	TotalUnits     int       `json:"total_units"`
	AllocatedUnits int       `json:"allocated_units"`
	AvailableUnits int       `json:"available_units"`
	LotCount       int       `json:"lot_count"`
}
