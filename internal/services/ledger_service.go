package services

import (
	"context"
	"fmt"

	"agridist/internal/models"
	"agridist/internal/repositories"

	"github.com/google/uuid"
)

// LedgerService exposes the read side of the inventory ledger plus the
// consistency audit run by the background scheduler.
type LedgerService interface {
	Lots(ctx context.Context, distributorID, productID uuid.UUID) ([]*models.Lot, error)
	Summary(ctx context.Context, distributorID, productID uuid.UUID) (*models.LedgerSummary, error)
	Audit(ctx context.Context) ([]string, error)
}

type ledgerService struct {
	lotRepo        repositories.LotRepository
	allocationRepo repositories.AllocationRepository
}

func NewLedgerService(lotRepo repositories.LotRepository, allocationRepo repositories.AllocationRepository) LedgerService {
	return &ledgerService{
		lotRepo:        lotRepo,
		allocationRepo: allocationRepo,
	}
}

func (s *ledgerService) Lots(ctx context.Context, distributorID, productID uuid.UUID) ([]*models.Lot, error) {
	return s.lotRepo.ListByDistributorAndProduct(ctx, distributorID, productID)
}

func (s *ledgerService) Summary(ctx context.Context, distributorID, productID uuid.UUID) (*models.LedgerSummary, error) {
	return s.lotRepo.Summary(ctx, distributorID, productID)
}

const auditPageSize = 500

// Audit walks every lot and re-verifies the two ledger invariants: the
// conservation equation on the lot itself, and that the sum of allocation
// records referencing the lot equals its allocated count. Violations are
// returned for the caller to escalate; they are never repaired here.
func (s *ledgerService) Audit(ctx context.Context) ([]string, error) {
	var problems []string
	offset := 0
	for {
		lots, err := s.lotRepo.ListAll(ctx, auditPageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(lots) == 0 {
			break
		}
		for _, lot := range lots {
			if err := lot.CheckConsistency(); err != nil {
				problems = append(problems, err.Error())
			}
			sum, err := s.allocationRepo.SumQuantityByLot(ctx, lot.ID)
			if err != nil {
				return nil, err
			}
			if sum != lot.AllocatedUnits {
				problems = append(problems, fmt.Sprintf("lot %s: allocation records sum to %d but allocated_units is %d", lot.ID, sum, lot.AllocatedUnits))
			}
		}
		if len(lots) < auditPageSize {
			break
		}
		offset += auditPageSize
	}
	return problems, nil
}
