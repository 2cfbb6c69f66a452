package handlers

import (
	"fmt"
	"net/http"
	"time"

	"agridist/internal/common"
	"agridist/internal/models"
	"agridist/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestHandlers handles fulfillment request HTTP endpoints
type RequestHandlers struct {
	requestService services.RequestService
	storage        services.StorageService
}

func NewRequestHandlers(requestService services.RequestService, storage services.StorageService) *RequestHandlers {
	return &RequestHandlers{
		requestService: requestService,
		storage:        storage,
	}
}

// SubmitRequest represents the request submission payload
type SubmitRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	Notes     *string   `json:"notes,omitempty"`
}

func (h *RequestHandlers) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	request, err := h.requestService.Submit(ctx, userID, req.ProductID, req.Quantity, req.Notes)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, request)
}

const maxReceiptSize = 10 << 20 // 10 MiB

// AttachReceipt handles the multipart receipt upload. The image goes to
// object storage; only the opaque object key is stored on the request.
func (h *RequestHandlers) AttachReceipt(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "invalid request id")
	}

	file, err := c.FormFile("receipt")
	if err != nil {
		return common.SendValidationError(c, "receipt", "receipt file is required")
	}
	if file.Size > maxReceiptSize {
		return common.SendValidationError(c, "receipt", "receipt exceeds 10MB limit")
	}

	src, err := file.Open()
	if err != nil {
		return common.SendServerError(c, "Failed to read upload")
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%d-%s", requestID, time.Now().UnixNano(), file.Filename)
	if err := h.storage.Upload(ctx, services.BucketReceipts, objectName, src, file.Size, contentType); err != nil {
		return common.SendServerError(c, "Failed to store receipt")
	}

	request, err := h.requestService.AttachReceipt(ctx, requestID, userID, objectName)
	if err != nil {
		// The request refused the receipt; don't leave the orphan object.
		if delErr := h.storage.Delete(ctx, services.BucketReceipts, objectName); delErr != nil {
			c.Logger().Warnf("failed to delete orphan receipt %s: %v", objectName, delErr)
		}
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, request)
}

// ReceiptURL returns a presigned URL so an approver can view the uploaded
// receipt without the core proxying image bytes.
func (h *RequestHandlers) ReceiptURL(c echo.Context) error {
	ctx := c.Request().Context()

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "invalid request id")
	}

	request, err := h.requestService.GetByID(ctx, requestID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	if request.ReceiptRef == nil {
		return echo.NewHTTPError(http.StatusNotFound, "No receipt attached")
	}

	url, err := h.storage.GetPresignedURL(services.BucketReceipts, *request.ReceiptRef, 15*time.Minute)
	if err != nil {
		return common.SendServerError(c, "Failed to presign receipt")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"url": url})
}

// DecisionRequest carries the optional approver notes for verify, reject,
// approve and cancel.
type DecisionRequest struct {
	Notes *string `json:"notes,omitempty"`
}

func (h *RequestHandlers) decide(c echo.Context, op func(ctx echo.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error)) error {
	ctx := c.Request().Context()

	approverID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "invalid request id")
	}

	var req DecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	request, err := op(c, requestID, approverID, req.Notes)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, request)
}

func (h *RequestHandlers) VerifyPayment(c echo.Context) error {
	return h.decide(c, func(c echo.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
		return h.requestService.VerifyPayment(c.Request().Context(), requestID, approverID, notes)
	})
}

func (h *RequestHandlers) RejectPayment(c echo.Context) error {
	return h.decide(c, func(c echo.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
		return h.requestService.RejectPayment(c.Request().Context(), requestID, approverID, notes)
	})
}

func (h *RequestHandlers) Approve(c echo.Context) error {
	return h.decide(c, func(c echo.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
		return h.requestService.Approve(c.Request().Context(), requestID, approverID, notes)
	})
}

func (h *RequestHandlers) Cancel(c echo.Context) error {
	return h.decide(c, func(c echo.Context, requestID, approverID uuid.UUID, notes *string) (*models.FulfillmentRequest, error) {
		return h.requestService.Cancel(c.Request().Context(), requestID, approverID, notes)
	})
}

// ListRequestsQuery represents query parameters for request listings
type ListRequestsQuery struct {
	Status        *string `query:"status"`
	PaymentStatus *string `query:"payment_status"`
	Limit         int     `query:"limit"`
	Offset        int     `query:"offset"`
}

// ListMine returns the caller's own requests.
func (h *RequestHandlers) ListMine(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var q ListRequestsQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}

	filter := &models.RequestSearchFilter{
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		RequesterID:   &userID,
		Limit:         clampLimit(q.Limit),
		Offset:        q.Offset,
	}
	requests, err := h.requestService.Search(ctx, filter)
	if err != nil {
		return common.SendServerError(c, "Failed to list requests")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// ApprovalQueue returns pending requests whose payment awaits verification
// or whose approval is outstanding.
func (h *RequestHandlers) ApprovalQueue(c echo.Context) error {
	ctx := c.Request().Context()

	var q ListRequestsQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}

	pending := models.RequestStatusPending
	filter := &models.RequestSearchFilter{
		Status:        &pending,
		PaymentStatus: q.PaymentStatus,
		Limit:         clampLimit(q.Limit),
		Offset:        q.Offset,
	}
	requests, err := h.requestService.Search(ctx, filter)
	if err != nil {
		return common.SendServerError(c, "Failed to list requests")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (h *RequestHandlers) Get(c echo.Context) error {
	ctx := c.Request().Context()

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "invalid request id")
	}

	request, err := h.requestService.GetByID(ctx, requestID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, request)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}
