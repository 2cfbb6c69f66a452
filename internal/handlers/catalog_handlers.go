package handlers

import (
	"net/http"
	"time"

	"agridist/internal/caching"
	"agridist/internal/common"
	"agridist/internal/models"
	"agridist/internal/repositories"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Stock reads tolerate short staleness; approvals invalidate the entry so a
// decrement is visible on the next read.
const stockCacheTTL = 1 * time.Minute

// CatalogHandlers serves the read-only product catalog and central stock.
// The core validates requests against the catalog but never mutates
// catalog data; only the stock counter (owned by the issuer) is writable.
type CatalogHandlers struct {
	productRepo     repositories.ProductRepository
	stockRepo       repositories.StockRepository
	cacheService    caching.CacheService
	paymentSettings models.PaymentSettings
}

func NewCatalogHandlers(productRepo repositories.ProductRepository, stockRepo repositories.StockRepository, cacheService caching.CacheService, paymentSettings models.PaymentSettings) *CatalogHandlers {
	return &CatalogHandlers{
		productRepo:     productRepo,
		stockRepo:       stockRepo,
		cacheService:    cacheService,
		paymentSettings: paymentSettings,
	}
}

func (h *CatalogHandlers) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	var q ListQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	limit := clampLimit(q.Limit)

	products, err := h.productRepo.List(ctx, limit, q.Offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list products")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
		"limit":    limit,
		"offset":   q.Offset,
	})
}

func (h *CatalogHandlers) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "invalid product id")
	}

	product, err := h.productRepo.GetByID(ctx, productID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// GetStock is a read-through: cache hit short-circuits, a miss reads the
// repository and repopulates the entry.
func (h *CatalogHandlers) GetStock(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "invalid product id")
	}

	if h.cacheService != nil {
		if cached, err := h.cacheService.GetStock(ctx, productID); cached != nil {
			return c.JSON(http.StatusOK, cached)
		} else if err != nil {
			c.Logger().Warnf("stock cache read failed for %s: %v", productID, err)
		}
	}

	stock, err := h.stockRepo.Get(ctx, productID)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	if h.cacheService != nil {
		if err := h.cacheService.SetStock(ctx, stock, stockCacheTTL); err != nil {
			c.Logger().Warnf("stock cache write failed for %s: %v", productID, err)
		}
	}
	return c.JSON(http.StatusOK, stock)
}

// SetStockRequest represents the stock seed/top-up payload
type SetStockRequest struct {
	Units int `json:"units" validate:"required,min=0"`
}

// SetStock seeds or replaces the central counter for a product. Issuer
// admins only; routed behind RequireRole.
func (h *CatalogHandlers) SetStock(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "invalid product id")
	}

	var req SetStockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Units < 0 {
		return common.SendValidationError(c, "units", "cannot be negative")
	}

	if _, err := h.productRepo.GetByID(ctx, productID); err != nil {
		return common.SendDomainError(c, err)
	}
	if err := h.stockRepo.Upsert(ctx, productID, req.Units); err != nil {
		return common.SendServerError(c, "Failed to set stock")
	}

	if h.cacheService != nil {
		if err := h.cacheService.DeleteStock(ctx, productID); err != nil {
			c.Logger().Warnf("failed to invalidate stock cache for %s: %v", productID, err)
		}
	}

	stock, err := h.stockRepo.Get(ctx, productID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, stock)
}

// PaymentSettings returns the remittance details a requester pays against
// before uploading a receipt.
func (h *CatalogHandlers) PaymentSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.paymentSettings)
}
