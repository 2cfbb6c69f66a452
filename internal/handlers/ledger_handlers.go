package handlers

import (
	"net/http"

	"agridist/internal/common"
	"agridist/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// LedgerHandlers exposes the read side of the inventory ledger
type LedgerHandlers struct {
	ledgerService services.LedgerService
}

func NewLedgerHandlers(ledgerService services.LedgerService) *LedgerHandlers {
	return &LedgerHandlers{ledgerService: ledgerService}
}

// Lots returns the caller's lots for one product, oldest first.
func (h *LedgerHandlers) Lots(c echo.Context) error {
	ctx := c.Request().Context()

	distributorID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	productID, err := uuid.Parse(c.QueryParam("product_id"))
	if err != nil {
		return common.SendValidationError(c, "product_id", "invalid product id")
	}

	lots, err := h.ledgerService.Lots(ctx, distributorID, productID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"lots": lots})
}

// Summary returns the caller's aggregate entitlement for one product.
func (h *LedgerHandlers) Summary(c echo.Context) error {
	ctx := c.Request().Context()

	distributorID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	productID, err := uuid.Parse(c.QueryParam("product_id"))
	if err != nil {
		return common.SendValidationError(c, "product_id", "invalid product id")
	}

	summary, err := h.ledgerService.Summary(ctx, distributorID, productID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
