package services

import (
	"context"
	"errors"
	"log"
	"time"

	"agridist/internal/caching"
	"agridist/internal/common"
	"agridist/internal/events"
	"agridist/internal/models"
	"agridist/internal/repositories"

	"github.com/google/uuid"
)

// RequestService drives a fulfillment request through payment verification
// and approval. Approval is the only place central stock is decremented and
// the only place a lot is opened.
type RequestService interface {
	Submit(ctx context.Context, requesterID, productID uuid.UUID, quantity int, notes *string) (*models.FulfillmentRequest, error)
	AttachReceipt(ctx context.Context, requestID, requesterID uuid.UUID, receiptRef string) (*models.FulfillmentRequest, error)
	VerifyPayment(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error)
	RejectPayment(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error)
	Approve(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error)
	Cancel(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error)
	GetByID(ctx context.Context, requestID uuid.UUID) (*models.FulfillmentRequest, error)
	Search(ctx context.Context, filter *models.RequestSearchFilter) ([]*models.FulfillmentRequest, error)
}

type requestService struct {
	requestRepo  repositories.RequestRepository
	productRepo  repositories.ProductRepository
	stockRepo    repositories.StockRepository
	lotRepo      repositories.LotRepository
	cacheService caching.CacheService
	publisher    events.Publisher
	stockLocks   *common.KeyMutex
}

func NewRequestService(
	requestRepo repositories.RequestRepository,
	productRepo repositories.ProductRepository,
	stockRepo repositories.StockRepository,
	lotRepo repositories.LotRepository,
	cacheService caching.CacheService,
	publisher events.Publisher,
	stockLocks *common.KeyMutex,
) RequestService {
	return &requestService{
		requestRepo:  requestRepo,
		productRepo:  productRepo,
		stockRepo:    stockRepo,
		lotRepo:      lotRepo,
		cacheService: cacheService,
		publisher:    publisher,
		stockLocks:   stockLocks,
	}
}

func (s *requestService) lookupProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if s.cacheService != nil {
		if cached, err := s.cacheService.GetProduct(ctx, productID); cached != nil {
			return cached, nil
		} else if err != nil {
			log.Printf("WARN: product cache read failed for %s: %v", productID, err)
		}
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.cacheService != nil {
		if err := s.cacheService.SetProduct(ctx, product, 10*time.Minute); err != nil {
			log.Printf("WARN: product cache write failed for %s: %v", productID, err)
		}
	}
	return product, nil
}

// availableStock reports the central counter, treating a missing row as zero.
func (s *requestService) availableStock(ctx context.Context, productID uuid.UUID) (int, error) {
	stock, err := s.stockRepo.Get(ctx, productID)
	if err != nil {
		var notFound *common.NotFoundError
		if errors.As(err, &notFound) {
			return 0, nil
		}
		return 0, err
	}
	return stock.Units, nil
}

func (s *requestService) Submit(ctx context.Context, requesterID, productID uuid.UUID, quantity int, notes *string) (*models.FulfillmentRequest, error) {
	if quantity < 1 {
		return nil, &common.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	if requesterID == uuid.Nil {
		return nil, &common.ValidationError{Field: "requester_id", Message: "is required"}
	}

	if _, err := s.lookupProduct(ctx, productID); err != nil {
		return nil, err
	}

	// Optimistic availability check; approval re-checks under the product
	// lock because stock may be consumed in the meantime.
	available, err := s.availableStock(ctx, productID)
	if err != nil {
		return nil, err
	}
	if available < quantity {
		return nil, &common.InsufficientStockError{Requested: quantity, Available: available}
	}

	request := &models.FulfillmentRequest{
		ID:            uuid.New(),
		RequesterID:   requesterID,
		ProductID:     productID,
		Quantity:      quantity,
		Status:        models.RequestStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Notes:         notes,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *requestService) AttachReceipt(ctx context.Context, requestID, requesterID uuid.UUID, receiptRef string) (*models.FulfillmentRequest, error) {
	if receiptRef == "" {
		return nil, &common.ValidationError{Field: "receipt", Message: "is required"}
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, &common.StateError{Op: "attach receipt", Current: "not owned by caller"}
	}
	if request.Status != models.RequestStatusPending {
		return nil, &common.StateError{Op: "attach receipt", Current: request.Status}
	}
	if request.PaymentStatus != models.PaymentStatusPending && request.PaymentStatus != models.PaymentStatusRejected {
		return nil, &common.StateError{Op: "attach receipt", Current: "payment " + request.PaymentStatus}
	}

	request.PaymentStatus = models.PaymentStatusPaid
	request.ReceiptRef = &receiptRef
	if err := s.requestRepo.Update(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *requestService) VerifyPayment(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Terminal() {
		return nil, &common.StateError{Op: "verify payment", Current: request.Status}
	}
	if request.PaymentStatus != models.PaymentStatusPaid {
		return nil, &common.StateError{Op: "verify payment", Current: "payment " + request.PaymentStatus}
	}

	now := time.Now()
	request.PaymentStatus = models.PaymentStatusVerified
	request.PaymentVerifierID = &approverID
	request.PaymentVerifiedAt = &now
	if notes != nil {
		request.Notes = notes
	}
	if err := s.requestRepo.Update(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *requestService) RejectPayment(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Terminal() {
		return nil, &common.StateError{Op: "reject payment", Current: request.Status}
	}
	if request.PaymentStatus != models.PaymentStatusPaid {
		return nil, &common.StateError{Op: "reject payment", Current: "payment " + request.PaymentStatus}
	}

	// The requester must upload a fresh receipt; the stale reference is
	// cleared so it cannot be re-verified.
	now := time.Now()
	request.PaymentStatus = models.PaymentStatusRejected
	request.ReceiptRef = nil
	request.PaymentVerifierID = &approverID
	request.PaymentVerifiedAt = &now
	if notes != nil {
		request.Notes = notes
	}
	if err := s.requestRepo.Update(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// Approve converts a verified request into owned inventory: decrement the
// central counter, open a lot, mark the request approved. The three steps are
// compensated backwards on failure so a crash or conflict never leaves stock
// decremented without a lot, or a lot without an approved request.
func (s *requestService) Approve(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, &common.StateError{Op: "approve", Current: request.Status}
	}
	if request.PaymentStatus != models.PaymentStatusVerified {
		return nil, &common.StateError{Op: "approve", Current: "payment " + request.PaymentStatus}
	}

	// Serialize approvals per product: the first approver to pass the
	// conditional decrement wins; a concurrent second approval re-checks
	// and may fail here even though submission-time validation passed.
	unlock := s.stockLocks.Lock("stock:" + request.ProductID.String())
	defer unlock()

	ok, err := s.stockRepo.DecrementIfAvailable(ctx, request.ProductID, request.Quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		available, availErr := s.availableStock(ctx, request.ProductID)
		if availErr != nil {
			return nil, availErr
		}
		return nil, &common.InsufficientStockError{Requested: request.Quantity, Available: available}
	}

	lot := &models.Lot{
		ID:              uuid.New(),
		DistributorID:   request.RequesterID,
		ProductID:       request.ProductID,
		TotalUnits:      request.Quantity,
		AvailableUnits:  request.Quantity,
		SourceRequestID: request.ID,
	}
	if err := s.lotRepo.Open(ctx, lot); err != nil {
		s.compensateStock(ctx, request.ProductID, request.Quantity)
		return nil, err
	}

	now := time.Now()
	request.Status = models.RequestStatusApproved
	request.ApproverID = &approverID
	request.ApprovedAt = &now
	if notes != nil {
		request.Notes = notes
	}
	if err := s.requestRepo.Update(ctx, request); err != nil {
		if delErr := s.lotRepo.Delete(ctx, lot.ID); delErr != nil {
			log.Printf("CRITICAL: approval compensation failed to delete lot %s: %v", lot.ID, delErr)
		}
		s.compensateStock(ctx, request.ProductID, request.Quantity)
		return nil, err
	}

	if s.cacheService != nil {
		if cacheErr := s.cacheService.DeleteStock(ctx, request.ProductID); cacheErr != nil {
			log.Printf("WARN: failed to invalidate stock cache for %s: %v", request.ProductID, cacheErr)
		}
	}

	s.publisher.Publish(ctx, events.TypeRequestApproved, map[string]interface{}{
		"request_id":     request.ID.String(),
		"distributor_id": request.RequesterID.String(),
		"product_id":     request.ProductID.String(),
		"quantity":       request.Quantity,
		"lot_id":         lot.ID.String(),
	})

	return request, nil
}

func (s *requestService) compensateStock(ctx context.Context, productID uuid.UUID, quantity int) {
	if err := s.stockRepo.Increment(ctx, productID, quantity); err != nil {
		log.Printf("CRITICAL: approval compensation failed to restore %d units of stock for product %s: %v", quantity, productID, err)
	}
}

func (s *requestService) Cancel(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, &common.StateError{Op: "cancel", Current: request.Status}
	}

	// Stock was never decremented for a pending request, so cancellation
	// touches neither the counter nor the ledger.
	request.Status = models.RequestStatusCancelled
	request.ApproverID = &approverID
	if notes != nil {
		request.Notes = notes
	}
	if err := s.requestRepo.Update(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *requestService) GetByID(ctx context.Context, requestID uuid.UUID) (*models.FulfillmentRequest, error) {
	return s.requestRepo.GetByID(ctx, requestID)
}

func (s *requestService) Search(ctx context.Context, filter *models.RequestSearchFilter) ([]*models.FulfillmentRequest, error) {
	if filter == nil {
		filter = &models.RequestSearchFilter{}
	}
	return s.requestRepo.Search(ctx, filter)
}
