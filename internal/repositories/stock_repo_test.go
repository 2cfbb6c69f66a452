package repositories

import (
	"context"
	"testing"
	"time"

	"agridist/internal/common"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type StockRepoTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	repo      StockRepository
	productID uuid.UUID
	context   context.Context
}

func (suite *StockRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewStockRepo(mock)
	suite.productID = uuid.New()
	suite.context = context.Background()
}

func (suite *StockRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestStockRepoTestSuite(t *testing.T) {
	suite.Run(t, new(StockRepoTestSuite))
}

func (suite *StockRepoTestSuite) TestGet_Success() {
	rows := pgxmock.NewRows([]string{"product_id", "units", "updated_at"}).
		AddRow(suite.productID, 120, time.Now())
	suite.mock.ExpectQuery(`SELECT product_id, units, updated_at`).
		WithArgs(suite.productID).
		WillReturnRows(rows)

	stock, err := suite.repo.Get(suite.context, suite.productID)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 120, stock.Units)
}

func (suite *StockRepoTestSuite) TestGet_NotFound() {
	suite.mock.ExpectQuery(`SELECT product_id, units, updated_at`).
		WithArgs(suite.productID).
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "units", "updated_at"}))

	_, err := suite.repo.Get(suite.context, suite.productID)

	var notFound *common.NotFoundError
	assert.ErrorAs(suite.T(), err, &notFound)
}

func (suite *StockRepoTestSuite) TestDecrementIfAvailable_Success() {
	suite.mock.ExpectExec(`UPDATE product_stock`).
		WithArgs(suite.productID, 30).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := suite.repo.DecrementIfAvailable(suite.context, suite.productID, 30)

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
}

// The guard clause refuses the decrement when fewer units remain; no error,
// just a false so the caller reports the shortfall.
func (suite *StockRepoTestSuite) TestDecrementIfAvailable_GuardFails() {
	suite.mock.ExpectExec(`UPDATE product_stock`).
		WithArgs(suite.productID, 500).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := suite.repo.DecrementIfAvailable(suite.context, suite.productID, 500)

	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *StockRepoTestSuite) TestIncrement_MissingRow() {
	suite.mock.ExpectExec(`UPDATE product_stock`).
		WithArgs(suite.productID, 10).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.Increment(suite.context, suite.productID, 10)

	var notFound *common.NotFoundError
	assert.ErrorAs(suite.T(), err, &notFound)
}

func (suite *StockRepoTestSuite) TestUpsert_Success() {
	suite.mock.ExpectExec(`INSERT INTO product_stock`).
		WithArgs(suite.productID, 250).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Upsert(suite.context, suite.productID, 250)

	assert.NoError(suite.T(), err)
}
