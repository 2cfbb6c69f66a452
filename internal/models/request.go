package models

import (
	"time"

	"github.com/google/uuid"
)

// Request status values. A request only ever leaves pending for one of the
// two terminal states.
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusCancelled = "cancelled"
)

// Payment status values. pending → paid → verified is the happy path;
// rejected sends the requester back to paid via a fresh receipt upload.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusVerified = "verified"
	PaymentStatusRejected = "rejected"
)

type FulfillmentRequest struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	RequesterID       uuid.UUID  `json:"requester_id" db:"requester_id"`
	ProductID         uuid.UUID  `json:"product_id" db:"product_id"`
	Quantity          int        `json:"quantity" db:"quantity"`
	Status            string     `json:"status" db:"status"`
	PaymentStatus     string     `json:"payment_status" db:"payment_status"`
	ReceiptRef        *string    `json:"receipt_ref" db:"receipt_ref"`
	ApproverID        *uuid.UUID `json:"approver_id" db:"approver_id"`
	ApprovedAt        *time.Time `json:"approved_at" db:"approved_at"`
	PaymentVerifierID *uuid.UUID `json:"payment_verifier_id" db:"payment_verifier_id"`
	PaymentVerifiedAt *time.Time `json:"payment_verified_at" db:"payment_verified_at"`
	Notes             *string    `json:"notes" db:"notes"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the request can no longer change state.
func (r *FulfillmentRequest) Terminal() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusCancelled
}

// RequestSearchFilter holds filter criteria for request listings
type RequestSearchFilter struct {
	Status        *string    `json:"status,omitempty"`
	PaymentStatus *string    `json:"payment_status,omitempty"`
	RequesterID   *uuid.UUID `json:"requester_id,omitempty"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}
