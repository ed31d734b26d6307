package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/interfaces/http/dto"
	"github.com/erp/sourcing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DispatchService is the application service behind the dispatch endpoints
type DispatchService interface {
	CreateDispatch(ctx context.Context, direction sourcing.Direction, req *dispatch.CreateDispatchRequest, actor uuid.UUID) (*dispatch.DispatchResult, error)
	ResendDispatch(ctx context.Context, batchID uuid.UUID, req *dispatch.ResendDispatchRequest, actor uuid.UUID) (*dispatch.DispatchResult, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*dispatch.BatchResponse, error)
	ListEligible(ctx context.Context, direction sourcing.Direction, counterpartyID uuid.UUID) ([]dispatch.EligibleInquiryResponse, error)
	Worklist(ctx context.Context, direction sourcing.Direction) ([]dispatch.WorklistItemResponse, error)
}

// DispatchHandler handles inquiry dispatch endpoints.
// Create and resend answer with the bare dispatch result; reads use the standard envelope.
type DispatchHandler struct {
	BaseHandler
	service DispatchService
}

// NewDispatchHandler creates a new DispatchHandler
func NewDispatchHandler(service DispatchService) *DispatchHandler {
	return &DispatchHandler{service: service}
}

// Create handles POST /dispatch/:direction/create
// @Summary      Dispatch inquiries to a counterparty
// @Description  Renders the inquiry letter and spreadsheet, commits a dispatch batch and notifies the counterparty. With preview set only the documents are rendered.
// @Tags         dispatch
// @Accept       json
// @Produce      json
// @Param        direction        path      string                          true   "Dispatch direction"  Enums(to-supplier, to-customer)
// @Param        X-User-ID        header    string                          false  "Acting user ID"
// @Param        Idempotency-Key  header    string                          false  "Replay key, overrides idempotencyKey in the body"
// @Param        request          body      dispatch.CreateDispatchRequest  true   "Dispatch request"
// @Success      200              {object}  dispatch.DispatchResult
// @Failure      400              {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      404              {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      409              {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      422              {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      500              {object}  dto.Response{error=dto.ErrorInfo}
// @Router       /dispatch/{direction}/create [post]
func (h *DispatchHandler) Create(c *gin.Context) {
	direction, err := sourcing.ParseDirection(c.Param("direction"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req dispatch.CreateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	if !h.applyIdempotencyHeader(c, &req.IdempotencyKey) {
		return
	}

	result, err := h.service.CreateDispatch(c.Request.Context(), direction, &req, middleware.GetActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Resend handles POST /dispatch/batches/:id/resend
// @Summary      Resend a dispatch batch
// @Description  Delivers the stored documents of a batch again and records the resend in its history
// @Tags         dispatch
// @Accept       json
// @Produce      json
// @Param        id               path      string                          true   "Batch ID"  format(uuid)
// @Param        X-User-ID        header    string                          false  "Acting user ID"
// @Param        Idempotency-Key  header    string                          false  "Replay key, overrides idempotencyKey in the body"
// @Param        request          body      dispatch.ResendDispatchRequest  true   "Resend request"
// @Success      200              {object}  dispatch.DispatchResult
// @Failure      400              {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      404              {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      409              {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      500              {object}  dto.Response{error=dto.ErrorInfo}
// @Router       /dispatch/batches/{id}/resend [post]
func (h *DispatchHandler) Resend(c *gin.Context) {
	batchID, ok := h.bindBatchID(c)
	if !ok {
		return
	}

	var req dispatch.ResendDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	if !h.applyIdempotencyHeader(c, &req.IdempotencyKey) {
		return
	}

	result, err := h.service.ResendDispatch(c.Request.Context(), batchID, &req, middleware.GetActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBatch handles GET /dispatch/batches/:id
// @Summary      Get dispatch batch
// @Description  Returns a batch with its inquiries, attachments and resend history
// @Tags         dispatch
// @Produce      json
// @Param        id   path      string  true  "Batch ID"  format(uuid)
// @Success      200  {object}  dto.Response{data=dispatch.BatchResponse}
// @Failure      400  {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      404  {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      500  {object}  dto.Response{error=dto.ErrorInfo}
// @Router       /dispatch/batches/{id} [get]
func (h *DispatchHandler) GetBatch(c *gin.Context) {
	batchID, ok := h.bindBatchID(c)
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// ListEligible handles GET /dispatch/:direction/eligible/:counterpartyId
// @Summary      List dispatchable inquiries
// @Description  Lists the counterparty's inquiries that are still waiting to be sent in this direction
// @Tags         dispatch
// @Produce      json
// @Param        direction       path      string  true  "Dispatch direction"  Enums(to-supplier, to-customer)
// @Param        counterpartyId  path      string  true  "Counterparty ID"     format(uuid)
// @Success      200             {object}  dto.Response{data=[]dispatch.EligibleInquiryResponse}
// @Failure      400             {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      500             {object}  dto.Response{error=dto.ErrorInfo}
// @Router       /dispatch/{direction}/eligible/{counterpartyId} [get]
func (h *DispatchHandler) ListEligible(c *gin.Context) {
	var uri dto.EligibleRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	direction, err := sourcing.ParseDirection(uri.Direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items, err := h.service.ListEligible(c.Request.Context(), direction, uuid.MustParse(uri.CounterpartyID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// Worklist handles GET /dispatch/:direction/worklist
// @Summary      Dispatch worklist
// @Description  Counts the undispatched inquiries of each counterparty
// @Tags         dispatch
// @Produce      json
// @Param        direction  path      string  true  "Dispatch direction"  Enums(to-supplier, to-customer)
// @Success      200        {object}  dto.Response{data=[]dispatch.WorklistItemResponse}
// @Failure      400        {object}  dto.Response{error=dto.ErrorInfo}
// @Failure      500        {object}  dto.Response{error=dto.ErrorInfo}
// @Router       /dispatch/{direction}/worklist [get]
func (h *DispatchHandler) Worklist(c *gin.Context) {
	direction, err := sourcing.ParseDirection(c.Param("direction"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items, err := h.service.Worklist(c.Request.Context(), direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// applyIdempotencyHeader lets the Idempotency-Key header override the body field
func (h *DispatchHandler) applyIdempotencyHeader(c *gin.Context, key *string) bool {
	header := c.GetHeader(middleware.IdempotencyKeyHeader)
	if header == "" {
		return true
	}
	if len(header) > middleware.MaxIdempotencyKeyLength {
		h.BadRequest(c, fmt.Sprintf("%s must be at most %d characters",
			middleware.IdempotencyKeyHeader, middleware.MaxIdempotencyKeyLength))
		return false
	}
	*key = header
	return true
}

func (h *DispatchHandler) bindBatchID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(uri.ID), true
}
