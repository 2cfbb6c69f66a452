package repositories

import (
	"context"
	"errors"

	"agridist/internal/common"
	"agridist/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LotRepository owns the per-distributor ledger entries. ApplyAllocation is
// the only mutation of a live lot's counters; its WHERE clause carries the
// ledger invariant so an out-of-bounds delta never reaches the row.
type LotRepository interface {
	Open(ctx context.Context, lot *models.Lot) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lot, error)
	ListByDistributorAndProduct(ctx context.Context, distributorID, productID uuid.UUID) ([]*models.Lot, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Lot, error)
	Summary(ctx context.Context, distributorID, productID uuid.UUID) (*models.LedgerSummary, error)
	ApplyAllocation(ctx context.Context, lotID uuid.UUID, delta int) error
}

type lotRepo struct {
	db Database
}

func NewLotRepo(db Database) LotRepository {
	return &lotRepo{db: db}
}

const lotColumns = `id, distributor_id, product_id, total_units, allocated_units, available_units, source_request_id, created_at`

func scanLot(row pgx.Row) (*models.Lot, error) {
	lot := &models.Lot{}
	err := row.Scan(&lot.ID, &lot.DistributorID, &lot.ProductID, &lot.TotalUnits, &lot.AllocatedUnits, &lot.AvailableUnits, &lot.SourceRequestID, &lot.CreatedAt)
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// Open creates the lot for an approved request. The unique constraint on
// source_request_id is the idempotency guard against retried approvals; a
// conflict surfaces as DuplicateError and must not be swallowed.
func (r *lotRepo) Open(ctx context.Context, lot *models.Lot) error {
	query := `
		INSERT INTO lots (id, distributor_id, product_id, total_units, allocated_units, available_units, source_request_id, created_at)
		VALUES ($1, $2, $3, $4, 0, $4, $5, NOW())
		ON CONFLICT (source_request_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, lot.ID, lot.DistributorID, lot.ProductID, lot.TotalUnits, lot.SourceRequestID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &common.DuplicateError{Resource: "lot", Key: "request " + lot.SourceRequestID.String()}
	}
	return nil
}

// Delete removes a lot. Only the approval compensation path uses this, and
// only on a lot that has never been allocated from.
func (r *lotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM lots WHERE id = $1 AND allocated_units = 0`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &common.NotFoundError{Resource: "unallocated lot", ID: id.String()}
	}
	return nil
}

func (r *lotRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	lot, err := scanLot(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &common.NotFoundError{Resource: "lot", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// ListByDistributorAndProduct returns the distributor's lots oldest first,
// the order the allocation walk consumes them in.
func (r *lotRepo) ListByDistributorAndProduct(ctx context.Context, distributorID, productID uuid.UUID) ([]*models.Lot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM lots
		WHERE distributor_id = $1 AND product_id = $2
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, distributorID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []*models.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *lotRepo) ListAll(ctx context.Context, limit, offset int) ([]*models.Lot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM lots
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []*models.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *lotRepo) Summary(ctx context.Context, distributorID, productID uuid.UUID) (*models.LedgerSummary, error) {
	summary := &models.LedgerSummary{DistributorID: distributorID, ProductID: productID}
	query := `
		SELECT COALESCE(SUM(total_units), 0), COALESCE(SUM(allocated_units), 0), COALESCE(SUM(available_units), 0), COUNT(*)
		FROM lots
		WHERE distributor_id = $1 AND product_id = $2
	`
	err := r.db.QueryRow(ctx, query, distributorID, productID).Scan(&summary.TotalUnits, &summary.AllocatedUnits, &summary.AvailableUnits, &summary.LotCount)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ApplyAllocation moves allocated_units by delta (positive on the forward
// walk, negative on rollback) and recomputes available_units in the same
// statement. The guard rejects any delta that would leave allocated_units
// outside [0, total_units].
func (r *lotRepo) ApplyAllocation(ctx context.Context, lotID uuid.UUID, delta int) error {
	query := `
		UPDATE lots
		SET allocated_units = allocated_units + $2, available_units = total_units - (allocated_units + $2)
		WHERE id = $1 AND allocated_units + $2 >= 0 AND allocated_units + $2 <= total_units
	`
	tag, err := r.db.Exec(ctx, query, lotID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No row moved: either the lot is gone or the delta breaks the invariant.
	if _, err := r.GetByID(ctx, lotID); err != nil {
		return err
	}
	return &common.OverAllocationError{LotID: lotID, Delta: delta}
}
