package repositories

import (
	"context"

	"agridist/internal/common"
	"agridist/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AllocationRepository interface {
	Create(ctx context.Context, allocation *models.Allocation) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDistributor(ctx context.Context, distributorID uuid.UUID, limit, offset int) ([]*models.Allocation, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*models.Allocation, error)
	SumQuantityByLot(ctx context.Context, lotID uuid.UUID) (int, error)
}

type allocationRepo struct {
	db Database
}

func NewAllocationRepo(db Database) AllocationRepository {
	return &allocationRepo{db: db}
}

const allocationColumns = `id, distributor_id, recipient_id, product_id, quantity, lot_id, notes, created_at`

func scanAllocation(row pgx.Row) (*models.Allocation, error) {
	allocation := &models.Allocation{}
	err := row.Scan(&allocation.ID, &allocation.DistributorID, &allocation.RecipientID, &allocation.ProductID, &allocation.Quantity, &allocation.LotID, &allocation.Notes, &allocation.CreatedAt)
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

func (r *allocationRepo) Create(ctx context.Context, allocation *models.Allocation) error {
	query := `
		INSERT INTO allocations (id, distributor_id, recipient_id, product_id, quantity, lot_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.Exec(ctx, query, allocation.ID, allocation.DistributorID, allocation.RecipientID, allocation.ProductID, allocation.Quantity, allocation.LotID, allocation.Notes)
	return err
}

// Delete removes an allocation record. Only the compensating rollback path
// uses this.
func (r *allocationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM allocations WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &common.NotFoundError{Resource: "allocation", ID: id.String()}
	}
	return nil
}

func (r *allocationRepo) ListByDistributor(ctx context.Context, distributorID uuid.UUID, limit, offset int) ([]*models.Allocation, error) {
	query := `
		SELECT ` + allocationColumns + `
		FROM allocations
		WHERE distributor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, distributorID, limit, offset)
}

func (r *allocationRepo) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*models.Allocation, error) {
	query := `
		SELECT ` + allocationColumns + `
		FROM allocations
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, recipientID, limit, offset)
}

func (r *allocationRepo) list(ctx context.Context, query string, id uuid.UUID, limit, offset int) ([]*models.Allocation, error) {
	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []*models.Allocation
	for rows.Next() {
		allocation, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, allocation)
	}
	return allocations, rows.Err()
}

func (r *allocationRepo) SumQuantityByLot(ctx context.Context, lotID uuid.UUID) (int, error) {
	var sum int
	query := `SELECT COALESCE(SUM(quantity), 0) FROM allocations WHERE lot_id = $1`
	if err := r.db.QueryRow(ctx, query, lotID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}
