package services

import (
	"context"
	"time"

	"agridist/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock repositories and services shared across the service test suites.

type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) Create(ctx context.Context, request *models.FulfillmentRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FulfillmentRequest), args.Error(1)
}

func (m *MockRequestRepository) Update(ctx context.Context, request *models.FulfillmentRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockRequestRepository) Search(ctx context.Context, filter *models.RequestSearchFilter) ([]*models.FulfillmentRequest, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*models.FulfillmentRequest), args.Error(1)
}

func (m *MockRequestRepository) ListStalePayments(ctx context.Context, cutoff time.Time, limit int) ([]*models.FulfillmentRequest, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]*models.FulfillmentRequest), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Product), args.Error(1)
}

type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) Get(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductStock), args.Error(1)
}

func (m *MockStockRepository) Upsert(ctx context.Context, productID uuid.UUID, units int) error {
	args := m.Called(ctx, productID, units)
	return args.Error(0)
}

func (m *MockStockRepository) DecrementIfAvailable(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	args := m.Called(ctx, productID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *MockStockRepository) Increment(ctx context.Context, productID uuid.UUID, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

type MockLotRepository struct {
	mock.Mock
}

func (m *MockLotRepository) Open(ctx context.Context, lot *models.Lot) error {
	args := m.Called(ctx, lot)
	return args.Error(0)
}

func (m *MockLotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lot), args.Error(1)
}

func (m *MockLotRepository) ListByDistributorAndProduct(ctx context.Context, distributorID, productID uuid.UUID) ([]*models.Lot, error) {
	args := m.Called(ctx, distributorID, productID)
	return args.Get(0).([]*models.Lot), args.Error(1)
}

func (m *MockLotRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Lot, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Lot), args.Error(1)
}

func (m *MockLotRepository) Summary(ctx context.Context, distributorID, productID uuid.UUID) (*models.LedgerSummary, error) {
	args := m.Called(ctx, distributorID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerSummary), args.Error(1)
}

func (m *MockLotRepository) ApplyAllocation(ctx context.Context, lotID uuid.UUID, delta int) error {
	args := m.Called(ctx, lotID, delta)
	return args.Error(0)
}

type MockAllocationRepository struct {
	mock.Mock
}

func (m *MockAllocationRepository) Create(ctx context.Context, allocation *models.Allocation) error {
	args := m.Called(ctx, allocation)
	return args.Error(0)
}

func (m *MockAllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAllocationRepository) ListByDistributor(ctx context.Context, distributorID uuid.UUID, limit, offset int) ([]*models.Allocation, error) {
	args := m.Called(ctx, distributorID, limit, offset)
	return args.Get(0).([]*models.Allocation), args.Error(1)
}

func (m *MockAllocationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*models.Allocation, error) {
	args := m.Called(ctx, recipientID, limit, offset)
	return args.Get(0).([]*models.Allocation), args.Error(1)
}

func (m *MockAllocationRepository) SumQuantityByLot(ctx context.Context, lotID uuid.UUID) (int, error) {
	args := m.Called(ctx, lotID)
	return args.Int(0), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockCacheService) SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	args := m.Called(ctx, product, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetStock(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductStock), args.Error(1)
}

func (m *MockCacheService) SetStock(ctx context.Context, stock *models.ProductStock, ttl time.Duration) error {
	args := m.Called(ctx, stock, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteStock(ctx context.Context, productID uuid.UUID) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	m.Called(ctx, eventType, payload)
}

type MockDispatchNoteService struct {
	mock.Mock
}

func (m *MockDispatchNoteService) Generate(ctx context.Context, distributorID, recipientID, productID uuid.UUID, allocations []*models.Allocation) (string, error) {
	args := m.Called(ctx, distributorID, recipientID, productID, allocations)
	return args.String(0), args.Error(1)
}
