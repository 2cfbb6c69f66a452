package handlers

import (
	"net/http"

	"agridist/internal/common"
	"agridist/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AllocationHandlers handles allocation HTTP endpoints
type AllocationHandlers struct {
	allocationService services.AllocationService
}

func NewAllocationHandlers(allocationService services.AllocationService) *AllocationHandlers {
	return &AllocationHandlers{allocationService: allocationService}
}

// AllocateRequest represents the allocation payload
type AllocateRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" validate:"required"`
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,min=1"`
	Notes       *string   `json:"notes,omitempty"`
}

// Allocate pushes units of the caller's entitlement to a downstream party.
// The caller is always the distributor: self-scoped per the identity
// contract.
func (h *AllocationHandlers) Allocate(c echo.Context) error {
	ctx := c.Request().Context()

	distributorID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req AllocateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	allocations, err := h.allocationService.Allocate(ctx, distributorID, req.RecipientID, req.ProductID, req.Quantity, req.Notes)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	total := 0
	for _, allocation := range allocations {
		total += allocation.Quantity
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"quantity":    total,
		"allocations": allocations,
	})
}

// ListQuery represents pagination query parameters
type ListQuery struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (h *AllocationHandlers) ListOutgoing(c echo.Context) error {
	ctx := c.Request().Context()

	distributorID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var q ListQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	limit := clampLimit(q.Limit)

	allocations, err := h.allocationService.ListOutgoing(ctx, distributorID, limit, q.Offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list allocations")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"allocations": allocations,
		"limit":       limit,
		"offset":      q.Offset,
	})
}

func (h *AllocationHandlers) ListIncoming(c echo.Context) error {
	ctx := c.Request().Context()

	recipientID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var q ListQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	limit := clampLimit(q.Limit)

	allocations, err := h.allocationService.ListIncoming(ctx, recipientID, limit, q.Offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list allocations")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"allocations": allocations,
		"limit":       limit,
		"offset":      q.Offset,
	})
}
