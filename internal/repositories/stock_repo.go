package repositories

import (
	"context"
	"errors"

	"agridist/internal/common"
	"agridist/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StockRepository manages the central per-product stock counter. The
// decrement is a single conditional UPDATE so two concurrent approvals can
// never jointly overdraw the counter.
type StockRepository interface {
	Get(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error)
	Upsert(ctx context.Context, productID uuid.UUID, units int) error
	DecrementIfAvailable(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
	Increment(ctx context.Context, productID uuid.UUID, quantity int) error
}

type stockRepo struct {
	db Database
}

func NewStockRepo(db Database) StockRepository {
	return &stockRepo{db: db}
}

func (r *stockRepo) Get(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error) {
	stock := &models.ProductStock{}
	query := `
		SELECT product_id, units, updated_at
		FROM product_stock
		WHERE product_id = $1
	`
	err := r.db.QueryRow(ctx, query, productID).Scan(&stock.ProductID, &stock.Units, &stock.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &common.NotFoundError{Resource: "product stock", ID: productID.String()}
	}
	if err != nil {
		return nil, err
	}
	return stock, nil
}

func (r *stockRepo) Upsert(ctx context.Context, productID uuid.UUID, units int) error {
	query := `
		INSERT INTO product_stock (product_id, units, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (product_id) DO UPDATE SET units = EXCLUDED.units, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, productID, units)
	return err
}

// DecrementIfAvailable atomically subtracts quantity when the counter holds
// at least that many units. Returns false when the guard fails; the caller
// decides how to report the shortfall.
func (r *stockRepo) DecrementIfAvailable(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	query := `
		UPDATE product_stock
		SET units = units - $2, updated_at = NOW()
		WHERE product_id = $1 AND units >= $2
	`
	tag, err := r.db.Exec(ctx, query, productID, quantity)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *stockRepo) Increment(ctx context.Context, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE product_stock
		SET units = units + $2, updated_at = NOW()
		WHERE product_id = $1
	`
	tag, err := r.db.Exec(ctx, query, productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &common.NotFoundError{Resource: "product stock", ID: productID.String()}
	}
	return nil
}
