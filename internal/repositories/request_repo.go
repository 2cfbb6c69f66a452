package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agridist/internal/common"
	"agridist/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type RequestRepository interface {
	Create(ctx context.Context, request *models.FulfillmentRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentRequest, error)
	Update(ctx context.Context, request *models.FulfillmentRequest) error
	Search(ctx context.Context, filter *models.RequestSearchFilter) ([]*models.FulfillmentRequest, error)
	ListStalePayments(ctx context.Context, cutoff time.Time, limit int) ([]*models.FulfillmentRequest, error)
}

type requestRepo struct {
	db Database
}

func NewRequestRepo(db Database) RequestRepository {
	return &requestRepo{db: db}
}

const requestColumns = `id, requester_id, product_id, quantity, status, payment_status, receipt_ref,
		approver_id, approved_at, payment_verifier_id, payment_verified_at, notes, created_at, updated_at`

func scanRequest(row pgx.Row) (*models.FulfillmentRequest, error) {
	request := &models.FulfillmentRequest{}
	err := row.Scan(
		&request.ID, &request.RequesterID, &request.ProductID, &request.Quantity,
		&request.Status, &request.PaymentStatus, &request.ReceiptRef,
		&request.ApproverID, &request.ApprovedAt, &request.PaymentVerifierID,
		&request.PaymentVerifiedAt, &request.Notes, &request.CreatedAt, &request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *requestRepo) Create(ctx context.Context, request *models.FulfillmentRequest) error {
	query := `
		INSERT INTO fulfillment_requests (id, requester_id, product_id, quantity, status, payment_status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, request.ID, request.RequesterID, request.ProductID, request.Quantity, request.Status, request.PaymentStatus, request.Notes)
	return err
}

func (r *requestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM fulfillment_requests WHERE id = $1`, requestColumns)
	request, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &common.NotFoundError{Resource: "request", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *requestRepo) Update(ctx context.Context, request *models.FulfillmentRequest) error {
	query := `
		UPDATE fulfillment_requests
		SET status = $2, payment_status = $3, receipt_ref = $4, approver_id = $5, approved_at = $6,
			payment_verifier_id = $7, payment_verified_at = $8, notes = $9, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		request.ID, request.Status, request.PaymentStatus, request.ReceiptRef,
		request.ApproverID, request.ApprovedAt, request.PaymentVerifierID,
		request.PaymentVerifiedAt, request.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &common.NotFoundError{Resource: "request", ID: request.ID.String()}
	}
	return nil
}

func (r *requestRepo) Search(ctx context.Context, filter *models.RequestSearchFilter) ([]*models.FulfillmentRequest, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	queryBase := fmt.Sprintf(`SELECT %s FROM fulfillment_requests WHERE 1=1`, requestColumns)
	args := []interface{}{}
	conditionCount := 0

	if filter.Status != nil {
		conditionCount++
		queryBase += fmt.Sprintf(` AND status = $%d`, conditionCount)
		args = append(args, *filter.Status)
	}
	if filter.PaymentStatus != nil {
		conditionCount++
		queryBase += fmt.Sprintf(` AND payment_status = $%d`, conditionCount)
		args = append(args, *filter.PaymentStatus)
	}
	if filter.RequesterID != nil {
		conditionCount++
		queryBase += fmt.Sprintf(` AND requester_id = $%d`, conditionCount)
		args = append(args, *filter.RequesterID)
	}
	if filter.ProductID != nil {
		conditionCount++
		queryBase += fmt.Sprintf(` AND product_id = $%d`, conditionCount)
		args = append(args, *filter.ProductID)
	}

	queryBase += ` ORDER BY created_at DESC`

	conditionCount++
	queryBase += fmt.Sprintf(` LIMIT $%d`, conditionCount)
	args = append(args, filter.Limit)
	if filter.Offset > 0 {
		conditionCount++
		queryBase += fmt.Sprintf(` OFFSET $%d`, conditionCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, queryBase, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.FulfillmentRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// ListStalePayments returns pending requests whose payment has been sitting
// in pending or rejected since before the cutoff. Used by the reminder job.
func (r *requestRepo) ListStalePayments(ctx context.Context, cutoff time.Time, limit int) ([]*models.FulfillmentRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fulfillment_requests
		WHERE status = 'pending' AND payment_status IN ('pending', 'rejected') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, requestColumns)
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.FulfillmentRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}
