package services

import (
	"context"
	"errors"
	"testing"

	"agridist/internal/common"
	"agridist/internal/events"
	"agridist/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type RequestServiceTestSuite struct {
	suite.Suite
	mockRequestRepo *MockRequestRepository
	mockProductRepo *MockProductRepository
	mockStockRepo   *MockStockRepository
	mockLotRepo     *MockLotRepository
	service         RequestService
	requesterID     uuid.UUID
	approverID      uuid.UUID
	productID       uuid.UUID
}

func (suite *RequestServiceTestSuite) SetupTest() {
	suite.mockRequestRepo = &MockRequestRepository{}
	suite.mockProductRepo = &MockProductRepository{}
	suite.mockStockRepo = &MockStockRepository{}
	suite.mockLotRepo = &MockLotRepository{}
	suite.service = NewRequestService(
		suite.mockRequestRepo,
		suite.mockProductRepo,
		suite.mockStockRepo,
		suite.mockLotRepo,
		nil, // no cache in unit tests
		events.NopPublisher{},
		common.NewKeyMutex(),
	)
	suite.requesterID = uuid.New()
	suite.approverID = uuid.New()
	suite.productID = uuid.New()
}

func (suite *RequestServiceTestSuite) TearDownTest() {
	suite.mockRequestRepo.AssertExpectations(suite.T())
	suite.mockProductRepo.AssertExpectations(suite.T())
	suite.mockStockRepo.AssertExpectations(suite.T())
	suite.mockLotRepo.AssertExpectations(suite.T())
}

func TestRequestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RequestServiceTestSuite))
}

func (suite *RequestServiceTestSuite) pendingRequest(paymentStatus string) *models.FulfillmentRequest {
	return &models.FulfillmentRequest{
		ID:            uuid.New(),
		RequesterID:   suite.requesterID,
		ProductID:     suite.productID,
		Quantity:      40,
		Status:        models.RequestStatusPending,
		PaymentStatus: paymentStatus,
	}
}

func (suite *RequestServiceTestSuite) TestSubmit_Success() {
	product := &models.Product{ID: suite.productID, Name: "Urea 50kg"}
	suite.mockProductRepo.On("GetByID", mock.Anything, suite.productID).Return(product, nil)
	suite.mockStockRepo.On("Get", mock.Anything, suite.productID).
		Return(&models.ProductStock{ProductID: suite.productID, Units: 100}, nil)
	suite.mockRequestRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.FulfillmentRequest")).Return(nil)

	request, err := suite.service.Submit(context.Background(), suite.requesterID, suite.productID, 40, nil)

	suite.NoError(err)
	suite.Equal(models.RequestStatusPending, request.Status)
	suite.Equal(models.PaymentStatusPending, request.PaymentStatus)
	suite.Equal(40, request.Quantity)
}

func (suite *RequestServiceTestSuite) TestSubmit_InvalidQuantity() {
	_, err := suite.service.Submit(context.Background(), suite.requesterID, suite.productID, 0, nil)

	var validationErr *common.ValidationError
	suite.ErrorAs(err, &validationErr)
	suite.Equal("quantity", validationErr.Field)
}

func (suite *RequestServiceTestSuite) TestSubmit_InsufficientStock() {
	product := &models.Product{ID: suite.productID, Name: "Urea 50kg"}
	suite.mockProductRepo.On("GetByID", mock.Anything, suite.productID).Return(product, nil)
	suite.mockStockRepo.On("Get", mock.Anything, suite.productID).
		Return(&models.ProductStock{ProductID: suite.productID, Units: 10}, nil)

	_, err := suite.service.Submit(context.Background(), suite.requesterID, suite.productID, 40, nil)

	var stockErr *common.InsufficientStockError
	suite.ErrorAs(err, &stockErr)
	suite.Equal(40, stockErr.Requested)
	suite.Equal(10, stockErr.Available)
}

func (suite *RequestServiceTestSuite) TestSubmit_MissingStockRowMeansZero() {
	product := &models.Product{ID: suite.productID, Name: "Urea 50kg"}
	suite.mockProductRepo.On("GetByID", mock.Anything, suite.productID).Return(product, nil)
	suite.mockStockRepo.On("Get", mock.Anything, suite.productID).
		Return(nil, &common.NotFoundError{Resource: "product stock", ID: suite.productID.String()})

	_, err := suite.service.Submit(context.Background(), suite.requesterID, suite.productID, 1, nil)

	var stockErr *common.InsufficientStockError
	suite.ErrorAs(err, &stockErr)
	suite.Equal(0, stockErr.Available)
}

func (suite *RequestServiceTestSuite) TestAttachReceipt_MovesPaymentToPaid() {
	request := suite.pendingRequest(models.PaymentStatusPending)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockRequestRepo.On("Update", mock.Anything, request).Return(nil)

	updated, err := suite.service.AttachReceipt(context.Background(), request.ID, suite.requesterID, "receipts/abc.jpg")

	suite.NoError(err)
	suite.Equal(models.PaymentStatusPaid, updated.PaymentStatus)
	suite.NotNil(updated.ReceiptRef)
	suite.Equal("receipts/abc.jpg", *updated.ReceiptRef)
}

func (suite *RequestServiceTestSuite) TestAttachReceipt_NotOwner() {
	request := suite.pendingRequest(models.PaymentStatusPending)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	_, err := suite.service.AttachReceipt(context.Background(), request.ID, uuid.New(), "receipts/abc.jpg")

	var stateErr *common.StateError
	suite.ErrorAs(err, &stateErr)
}

func (suite *RequestServiceTestSuite) TestVerifyPayment_RequiresPaid() {
	request := suite.pendingRequest(models.PaymentStatusPending)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	_, err := suite.service.VerifyPayment(context.Background(), request.ID, suite.approverID, nil)

	var stateErr *common.StateError
	suite.ErrorAs(err, &stateErr)
	suite.Contains(stateErr.Current, "payment")
}

func (suite *RequestServiceTestSuite) TestRejectPayment_ClearsReceipt() {
	receipt := "receipts/stale.jpg"
	request := suite.pendingRequest(models.PaymentStatusPaid)
	request.ReceiptRef = &receipt
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockRequestRepo.On("Update", mock.Anything, request).Return(nil)

	updated, err := suite.service.RejectPayment(context.Background(), request.ID, suite.approverID, nil)

	suite.NoError(err)
	suite.Equal(models.PaymentStatusRejected, updated.PaymentStatus)
	suite.Nil(updated.ReceiptRef)
}

// A rejected payment is not terminal: the requester re-uploads, the approver
// verifies, and the request is then eligible for approval.
func (suite *RequestServiceTestSuite) TestRejectedPaymentRoundTrip() {
	request := suite.pendingRequest(models.PaymentStatusRejected)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockRequestRepo.On("Update", mock.Anything, request).Return(nil)

	updated, err := suite.service.AttachReceipt(context.Background(), request.ID, suite.requesterID, "receipts/fresh.jpg")
	suite.NoError(err)
	suite.Equal(models.PaymentStatusPaid, updated.PaymentStatus)

	updated, err = suite.service.VerifyPayment(context.Background(), request.ID, suite.approverID, nil)
	suite.NoError(err)
	suite.Equal(models.PaymentStatusVerified, updated.PaymentStatus)

	suite.mockStockRepo.On("DecrementIfAvailable", mock.Anything, suite.productID, 40).Return(true, nil)
	suite.mockLotRepo.On("Open", mock.Anything, mock.AnythingOfType("*models.Lot")).Return(nil)

	updated, err = suite.service.Approve(context.Background(), request.ID, suite.approverID, nil)
	suite.NoError(err)
	suite.Equal(models.RequestStatusApproved, updated.Status)
}

func (suite *RequestServiceTestSuite) TestApprove_DecrementsStockAndOpensLot() {
	request := suite.pendingRequest(models.PaymentStatusVerified)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockStockRepo.On("DecrementIfAvailable", mock.Anything, suite.productID, 40).Return(true, nil).Once()
	suite.mockLotRepo.On("Open", mock.Anything, mock.MatchedBy(func(lot *models.Lot) bool {
		return lot.DistributorID == suite.requesterID &&
			lot.ProductID == suite.productID &&
			lot.TotalUnits == 40 &&
			lot.AvailableUnits == 40 &&
			lot.AllocatedUnits == 0 &&
			lot.SourceRequestID == request.ID
	})).Return(nil)
	suite.mockRequestRepo.On("Update", mock.Anything, request).Return(nil)

	updated, err := suite.service.Approve(context.Background(), request.ID, suite.approverID, nil)

	suite.NoError(err)
	suite.Equal(models.RequestStatusApproved, updated.Status)
	suite.Equal(&suite.approverID, updated.ApproverID)
	suite.NotNil(updated.ApprovedAt)
}

// Approval decrements the central counter, so the cached stock entry must be
// dropped; a later read repopulates it from the repository.
func (suite *RequestServiceTestSuite) TestApprove_InvalidatesStockCache() {
	mockCache := &MockCacheService{}
	service := NewRequestService(
		suite.mockRequestRepo,
		suite.mockProductRepo,
		suite.mockStockRepo,
		suite.mockLotRepo,
		mockCache,
		events.NopPublisher{},
		common.NewKeyMutex(),
	)

	request := suite.pendingRequest(models.PaymentStatusVerified)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockStockRepo.On("DecrementIfAvailable", mock.Anything, suite.productID, 40).Return(true, nil)
	suite.mockLotRepo.On("Open", mock.Anything, mock.AnythingOfType("*models.Lot")).Return(nil)
	suite.mockRequestRepo.On("Update", mock.Anything, request).Return(nil)
	mockCache.On("DeleteStock", mock.Anything, suite.productID).Return(nil)

	_, err := service.Approve(context.Background(), request.ID, suite.approverID, nil)

	suite.NoError(err)
	mockCache.AssertExpectations(suite.T())
}

func (suite *RequestServiceTestSuite) TestApprove_UnverifiedPayment() {
	request := suite.pendingRequest(models.PaymentStatusPaid)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	_, err := suite.service.Approve(context.Background(), request.ID, suite.approverID, nil)

	var stateErr *common.StateError
	suite.ErrorAs(err, &stateErr)
	suite.Equal("payment paid", stateErr.Current)
}

func (suite *RequestServiceTestSuite) TestApprove_InsufficientStockAtApprovalTime() {
	request := suite.pendingRequest(models.PaymentStatusVerified)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockStockRepo.On("DecrementIfAvailable", mock.Anything, suite.productID, 40).Return(false, nil)
	suite.mockStockRepo.On("Get", mock.Anything, suite.productID).
		Return(&models.ProductStock{ProductID: suite.productID, Units: 25}, nil)

	_, err := suite.service.Approve(context.Background(), request.ID, suite.approverID, nil)

	var stockErr *common.InsufficientStockError
	suite.ErrorAs(err, &stockErr)
	suite.Equal(25, stockErr.Available)
	suite.Equal(models.RequestStatusPending, request.Status)
}

// A duplicate lot open means this request was already approved once; the
// stock decrement must be compensated, not kept.
func (suite *RequestServiceTestSuite) TestApprove_DuplicateLotCompensatesStock() {
	request := suite.pendingRequest(models.PaymentStatusVerified)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockStockRepo.On("DecrementIfAvailable", mock.Anything, suite.productID, 40).Return(true, nil)
	suite.mockLotRepo.On("Open", mock.Anything, mock.AnythingOfType("*models.Lot")).
		Return(&common.DuplicateError{Resource: "lot", Key: request.ID.String()})
	suite.mockStockRepo.On("Increment", mock.Anything, suite.productID, 40).Return(nil)

	_, err := suite.service.Approve(context.Background(), request.ID, suite.approverID, nil)

	var dupErr *common.DuplicateError
	suite.ErrorAs(err, &dupErr)
}

func (suite *RequestServiceTestSuite) TestApprove_UpdateFailureUnwindsLotAndStock() {
	request := suite.pendingRequest(models.PaymentStatusVerified)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockStockRepo.On("DecrementIfAvailable", mock.Anything, suite.productID, 40).Return(true, nil)
	suite.mockLotRepo.On("Open", mock.Anything, mock.AnythingOfType("*models.Lot")).Return(nil)
	suite.mockRequestRepo.On("Update", mock.Anything, request).Return(errors.New("connection reset"))
	suite.mockLotRepo.On("Delete", mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(nil)
	suite.mockStockRepo.On("Increment", mock.Anything, suite.productID, 40).Return(nil)

	_, err := suite.service.Approve(context.Background(), request.ID, suite.approverID, nil)

	suite.Error(err)
}

func (suite *RequestServiceTestSuite) TestCancel_OnlyFromPending() {
	request := suite.pendingRequest(models.PaymentStatusVerified)
	request.Status = models.RequestStatusApproved
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)

	_, err := suite.service.Cancel(context.Background(), request.ID, suite.approverID, nil)

	var stateErr *common.StateError
	suite.ErrorAs(err, &stateErr)
}

// Cancellation of a pending request never touches the central counter or the
// ledger, regardless of payment progress.
func (suite *RequestServiceTestSuite) TestCancel_LeavesStockAndLedgerUntouched() {
	request := suite.pendingRequest(models.PaymentStatusVerified)
	suite.mockRequestRepo.On("GetByID", mock.Anything, request.ID).Return(request, nil)
	suite.mockRequestRepo.On("Update", mock.Anything, request).Return(nil)

	updated, err := suite.service.Cancel(context.Background(), request.ID, suite.approverID, nil)

	suite.NoError(err)
	suite.Equal(models.RequestStatusCancelled, updated.Status)
	suite.mockStockRepo.AssertNotCalled(suite.T(), "DecrementIfAvailable", mock.Anything, mock.Anything, mock.Anything)
	suite.mockLotRepo.AssertNotCalled(suite.T(), "Open", mock.Anything, mock.Anything)
}
