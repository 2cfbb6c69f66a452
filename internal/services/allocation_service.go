package services

import (
	"context"
	"errors"
	"log"
	"time"

	"agridist/internal/common"
	"agridist/internal/events"
	"agridist/internal/models"
	"agridist/internal/repositories"

	"github.com/google/uuid"
)

// AllocationService moves units from a distributor's entitlement into a
// downstream party's entitlement. One call is one logical allocation event;
// it either fully succeeds (possibly spanning several lots) or leaves every
// lot exactly as it found it.
type AllocationService interface {
	Allocate(ctx context.Context, distributorID, recipientID, productID uuid.UUID, quantity int, notes *string) ([]*models.Allocation, error)
	ListOutgoing(ctx context.Context, distributorID uuid.UUID, limit, offset int) ([]*models.Allocation, error)
	ListIncoming(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*models.Allocation, error)
}

type allocationService struct {
	lotRepo        repositories.LotRepository
	allocationRepo repositories.AllocationRepository
	noteService    DispatchNoteService
	publisher      events.Publisher
	ledgerLocks    *common.KeyMutex
}

func NewAllocationService(
	lotRepo repositories.LotRepository,
	allocationRepo repositories.AllocationRepository,
	noteService DispatchNoteService,
	publisher events.Publisher,
	ledgerLocks *common.KeyMutex,
) AllocationService {
	return &allocationService{
		lotRepo:        lotRepo,
		allocationRepo: allocationRepo,
		noteService:    noteService,
		publisher:      publisher,
		ledgerLocks:    ledgerLocks,
	}
}

// undoEntry records one applied portion so a failed multi-lot walk can be
// compensated exactly.
type undoEntry struct {
	allocation *models.Allocation
	lotID      uuid.UUID
	portion    int
}

func (s *allocationService) Allocate(ctx context.Context, distributorID, recipientID, productID uuid.UUID, quantity int, notes *string) ([]*models.Allocation, error) {
	if quantity < 1 {
		return nil, &common.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	if recipientID == uuid.Nil {
		return nil, &common.ValidationError{Field: "recipient_id", Message: "is required"}
	}
	if recipientID == distributorID {
		return nil, &common.ValidationError{Field: "recipient_id", Message: "cannot allocate to self"}
	}

	// The walk-and-rollback below is not safe against a concurrent
	// allocation mutating the same lots mid-walk, so calls are serialized
	// per (distributor, product).
	unlock := s.ledgerLocks.Lock("ledger:" + distributorID.String() + ":" + productID.String())
	defer unlock()

	lots, err := s.lotRepo.ListByDistributorAndProduct(ctx, distributorID, productID)
	if err != nil {
		return nil, err
	}

	remaining := quantity
	var undo []undoEntry

	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if lot.AvailableUnits <= 0 {
			continue
		}

		portion := lot.AvailableUnits
		if portion > remaining {
			portion = remaining
		}

		allocation := &models.Allocation{
			ID:            uuid.New(),
			DistributorID: distributorID,
			RecipientID:   recipientID,
			ProductID:     productID,
			Quantity:      portion,
			LotID:         lot.ID,
			Notes:         notes,
			CreatedAt:     time.Now(),
		}
		if err := s.allocationRepo.Create(ctx, allocation); err != nil {
			s.rollback(ctx, undo)
			s.publishRollback(ctx, distributorID, recipientID, productID, quantity, quantity-remaining)
			return nil, err
		}
		if err := s.lotRepo.ApplyAllocation(ctx, lot.ID, portion); err != nil {
			// The record exists but the lot was never moved; include it in
			// the undo set with a zero portion so only the record is removed.
			undo = append(undo, undoEntry{allocation: allocation, lotID: lot.ID, portion: 0})
			s.rollback(ctx, undo)
			s.publishRollback(ctx, distributorID, recipientID, productID, quantity, quantity-remaining)
			var overErr *common.OverAllocationError
			if errors.As(err, &overErr) {
				log.Printf("CRITICAL: over-allocation detected on lot %s during allocation walk: %v", lot.ID, err)
			}
			return nil, err
		}

		undo = append(undo, undoEntry{allocation: allocation, lotID: lot.ID, portion: portion})
		remaining -= portion
	}

	if remaining > 0 {
		// Lots exhausted: the requested allocation is infeasible as a whole.
		// Undo every applied portion and report what would have fit.
		s.rollback(ctx, undo)
		s.publishRollback(ctx, distributorID, recipientID, productID, quantity, quantity-remaining)
		return nil, &common.InsufficientStockError{Requested: quantity, Available: quantity - remaining}
	}

	allocations := make([]*models.Allocation, 0, len(undo))
	for _, entry := range undo {
		allocations = append(allocations, entry.allocation)
	}

	s.publisher.Publish(ctx, events.TypeAllocationCreated, map[string]interface{}{
		"distributor_id": distributorID.String(),
		"recipient_id":   recipientID.String(),
		"product_id":     productID.String(),
		"quantity":       quantity,
		"lots_spanned":   len(allocations),
	})

	if s.noteService != nil {
		if _, err := s.noteService.Generate(ctx, distributorID, recipientID, productID, allocations); err != nil {
			log.Printf("WARN: dispatch note generation failed for recipient %s: %v", recipientID, err)
		}
	}

	return allocations, nil
}

// publishRollback reports that applied units were compensated back onto the
// ledger after a failed allocation attempt. Every rollback site emits this,
// whether the walk fell short or a storage step failed mid-walk.
func (s *allocationService) publishRollback(ctx context.Context, distributorID, recipientID, productID uuid.UUID, requested, applied int) {
	s.publisher.Publish(ctx, events.TypeAllocationRolledBack, map[string]interface{}{
		"distributor_id": distributorID.String(),
		"recipient_id":   recipientID.String(),
		"product_id":     productID.String(),
		"requested":      requested,
		"applied":        applied,
	})
}

const (
	rollbackAttempts = 3
	rollbackBackoff  = 50 * time.Millisecond
)

// rollback compensates every entry: delete the allocation record, restore
// the lot's allocated count. Each step is retried; a step that still fails
// leaves the ledger inconsistent and is escalated at the highest severity
// rather than swallowed.
func (s *allocationService) rollback(ctx context.Context, undo []undoEntry) {
	for _, entry := range undo {
		if err := retry(func() error { return s.allocationRepo.Delete(ctx, entry.allocation.ID) }); err != nil {
			log.Printf("CRITICAL: rollback failed to delete allocation %s (lot %s): %v", entry.allocation.ID, entry.lotID, err)
		}
		if entry.portion == 0 {
			continue
		}
		if err := retry(func() error { return s.lotRepo.ApplyAllocation(ctx, entry.lotID, -entry.portion) }); err != nil {
			log.Printf("CRITICAL: rollback failed to restore %d units on lot %s: %v", entry.portion, entry.lotID, err)
		}
	}
}

func retry(fn func() error) error {
	var err error
	for attempt := 0; attempt < rollbackAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(rollbackBackoff * time.Duration(attempt+1))
	}
	return err
}

func (s *allocationService) ListOutgoing(ctx context.Context, distributorID uuid.UUID, limit, offset int) ([]*models.Allocation, error) {
	return s.allocationRepo.ListByDistributor(ctx, distributorID, limit, offset)
}

func (s *allocationService) ListIncoming(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*models.Allocation, error) {
	return s.allocationRepo.ListByRecipient(ctx, recipientID, limit, offset)
}
