// Receipt HTTP handlers.
//
// This file exposes REST endpoints for receipt resources:
//   - POST /receipts          (create, idempotency-aware)
//   - GET  /receipts          (list recent, ETag support)
//   - GET  /receipts/latest   (most recent receipt, ETag support)
//   - GET  /receipts/{number} (point lookup)
//
// Handlers are transport-thin: they validate input shape, call the receipt
// service, and translate results into HTTP responses (including conditional
// responses). Field constraints on line items are enforced by the service
// before any sequence number is allocated; violations map to 422.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// creation exists for that key, the handler returns the originally issued
// receipt and sets `Idempotency-Replayed: true`. No second number is
// allocated for a replay.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vellixao/go-receipt-backend/internal/domain"
	"github.com/vellixao/go-receipt-backend/internal/http/middleware"
	"github.com/vellixao/go-receipt-backend/internal/repo"
	"github.com/vellixao/go-receipt-backend/internal/services"
	"github.com/vellixao/go-receipt-backend/internal/utils"
)

//
// Service contract (context-aware)
//

// ReceiptService defines receipt lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts (with the documented
// exception that an insert following a number allocation runs to
// completion).
type ReceiptService interface {
	// Create validates input, allocates the next number, and persists a
	// new receipt.
	Create(ctx context.Context, in services.CreateReceiptInput) (*domain.Receipt, error)
	// Latest returns the receipt with the maximum number.
	Latest(ctx context.Context) (*domain.Receipt, error)
	// ByNumber returns the receipt with the given number.
	ByNumber(ctx context.Context, number int64) (*domain.Receipt, error)
	// List returns up to limit receipts, number descending.
	List(ctx context.Context, limit int) ([]domain.Receipt, error)
}

//
// Handler wiring
//

// defaultIdempotencyTTL bounds how long a stored Idempotency-Key can be
// replayed when no TTL has been configured.
const defaultIdempotencyTTL = 24 * time.Hour

// Handlers groups the HTTP endpoints for receipts. It depends on an
// abstract service interface to keep transport concerns separate from
// business logic.
type Handlers struct {
	rcptSvc ReceiptService

	// IdempotencyTTL is how long a stored Idempotency-Key remains
	// replayable. Zero or negative falls back to defaultIdempotencyTTL.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given service.
func New(rcptSvc ReceiptService) *Handlers {
	return &Handlers{rcptSvc: rcptSvc}
}

//
// DTOs
//

// ReceiptItemRequest is one line item in a creation payload. Quantity may
// be omitted (defaults to 1); Price is mandatory and uses a pointer so a
// legitimate 0 survives binding.
type ReceiptItemRequest struct {
	// Name describes the item. Must be non-empty.
	Name string `json:"name" example:"Americano"`
	// Quantity of the item; omitted means 1. Must be >= 1.
	Quantity *int `json:"quantity,omitempty" example:"2"`
	// Price is the unit price. Must be >= 0.
	Price *float64 `json:"price" example:"3.5"`
}

// CreateReceiptRequest is the JSON payload for creating a receipt.
type CreateReceiptRequest struct {
	// CustomerName optionally names the customer on the receipt.
	CustomerName *string `json:"customer_name,omitempty" example:"Jordan"`
	// Items are the ordered line items; an empty list is allowed.
	Items []ReceiptItemRequest `json:"items"`
	// Notes is an optional free-form note printed on the receipt.
	Notes *string `json:"notes,omitempty" example:"paid in cash"`
}

//
// Handlers
//

// CreateReceipt godoc
// @ID          createReceipt
// @Summary     Create a new receipt
// @Description Validates the line items, allocates the next receipt number, and persists the receipt.
// @Description Supports idempotency via the Idempotency-Key header (same key → same receipt).
// @Tags        Receipts
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateReceiptRequest  true  "Receipt payload"
//
// @Success     201  {object}  domain.Receipt
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed JSON"
// @Failure     422  {object}  handlers.ErrorResponse  "Item constraint violation"
// @Failure     500  {object}  handlers.ErrorResponse  "Store unconfigured or write failure"
// @Router      /receipts [post]
func (h *Handlers) CreateReceipt(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := requestIdempotencyKey(c)
	if idemKey != "" {
		if db := serviceDB(h.rcptSvc); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetReceiptByNumber(ctx, db, rec.ReceiptNumber); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	in := services.CreateReceiptInput{
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
	}
	for _, it := range req.Items {
		if it.Price == nil {
			fail(c, http.StatusUnprocessableEntity, ErrCodeUnprocessable, "item price is required")
			return
		}
		in.Items = append(in.Items, services.ItemInput{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    *it.Price,
		})
	}

	r, err := h.rcptSvc.Create(ctx, in)
	if err != nil {
		switch err {
		case services.ErrStoreUnconfigured:
			fail(c, http.StatusInternalServerError, ErrCodeStoreUnconfigured, "store not configured")
		case services.ErrItemNameRequired, services.ErrInvalidQuantity, services.ErrInvalidPrice:
			fail(c, http.StatusUnprocessableEntity, ErrCodeUnprocessable, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if db := serviceDB(h.rcptSvc); db != nil {
			_, _ = repo.CreateIdempotency(ctx, db, idemKey, r.Number, http.StatusCreated, h.idempotencyTTL())
		}
	}

	ok(c, http.StatusCreated, r)
}

// GetLatestReceipt godoc
// @ID          getLatestReceipt
// @Summary     Fetch the most recent receipt
// @Description Returns the receipt with the highest number. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Receipts
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"receipts:3:17\")
//
// @Success     200  {object}  domain.Receipt
// @Header      200  {string}  ETag  "Weak ETag for the current store state"
// @Success     304  {string}  string "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse "No receipts exist"
// @Failure     500  {object}  handlers.ErrorResponse "Store unconfigured or read failure"
// @Router      /receipts/latest [get]
func (h *Handlers) GetLatestReceipt(c *gin.Context) {
	ctx := c.Request.Context()

	if h.setReceiptsETag(c, true) {
		return
	}

	r, err := h.rcptSvc.Latest(ctx)
	if err != nil {
		failReceiptRead(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// GetReceiptByNumber godoc
// @ID          getReceiptByNumber
// @Summary     Fetch a receipt by number
// @Tags        Receipts
// @Produce     json
//
// @Param       number  path  int  true  "Receipt number"  minimum(1)
//
// @Success     200  {object}  domain.Receipt
// @Failure     400  {object}  handlers.ErrorResponse "Non-integer number"
// @Failure     404  {object}  handlers.ErrorResponse "Receipt not found"
// @Failure     500  {object}  handlers.ErrorResponse "Store unconfigured or read failure"
// @Router      /receipts/{number} [get]
func (h *Handlers) GetReceiptByNumber(c *gin.Context) {
	ctx := c.Request.Context()

	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receipt number must be an integer")
		return
	}

	r, err := h.rcptSvc.ByNumber(ctx, number)
	if err != nil {
		failReceiptRead(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// ListReceipts godoc
// @ID          listReceipts
// @Summary     List recent receipts
// @Description Returns up to `limit` receipts ordered by number descending. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Receipts
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"receipts:3:17\")
// @Param       limit          query   int     false "Maximum receipts to return"  minimum(1) default(20)
//
// @Success     200  {array}   domain.Receipt
// @Header      200  {string}  ETag  "Weak ETag for the current store state"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse "Store unconfigured or read failure"
// @Router      /receipts [get]
func (h *Handlers) ListReceipts(c *gin.Context) {
	ctx := c.Request.Context()

	if h.setReceiptsETag(c, false) {
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 0)
	items, err := h.rcptSvc.List(ctx, limit)
	if err != nil {
		switch err {
		case services.ErrStoreUnconfigured:
			fail(c, http.StatusInternalServerError, ErrCodeStoreUnconfigured, "store not configured")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, items)
}

//
// Helpers
//

// requestIdempotencyKey extracts an idempotency key if an upstream
// middleware has already validated/stashed it. The fallback behavior reads
// the "Idempotency-Key" header directly when no dedicated middleware exists.
func requestIdempotencyKey(c *gin.Context) (string, bool) {
	if v, ok := middleware.GetIdempotencyKey(c); ok {
		return v, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}

// idempotencyTTL returns the configured replay window, falling back to the
// package default when unset.
func (h *Handlers) idempotencyTTL() time.Duration {
	if h.IdempotencyTTL > 0 {
		return h.IdempotencyTTL
	}
	return defaultIdempotencyTTL
}

// serviceDB exposes the concrete service's DB handle for best-effort side
// lookups (idempotency, ETag stats). Returns nil for stub services.
func serviceDB(svc ReceiptService) *gorm.DB {
	if s, ok := svc.(*services.ReceiptService); ok {
		return s.DB
	}
	return nil
}

// setReceiptsETag computes a weak ETag from the receipt count and maximum
// number, writes it, and answers 304 when If-None-Match matches. It returns
// true when the request has been fully handled. All failures are best
// effort: on any error the request proceeds without conditional handling.
//
// When requireExisting is set and the store holds no receipts, the handler
// must answer 404 rather than 304, so no conditional handling happens.
func (h *Handlers) setReceiptsETag(c *gin.Context, requireExisting bool) bool {
	db := serviceDB(h.rcptSvc)
	if db == nil {
		return false
	}
	count, maxNum, err := repo.ReceiptsStats(c.Request.Context(), db)
	if err != nil {
		return false
	}
	if requireExisting && count == 0 {
		return false
	}
	etag := fmt.Sprintf(`W/"receipts:%d:%d"`, count, maxNum)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// failReceiptRead maps read-path service errors to HTTP responses.
func failReceiptRead(c *gin.Context, err error) {
	switch err {
	case services.ErrStoreUnconfigured:
		fail(c, http.StatusInternalServerError, ErrCodeStoreUnconfigured, "store not configured")
	case services.ErrReceiptNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "receipt not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
