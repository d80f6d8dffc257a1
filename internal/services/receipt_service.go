// Package services – ReceiptService
//
// This file implements the ReceiptService, which orchestrates receipt
// creation and retrieval. It validates line items, allocates the next
// receipt number through the store's atomic counter, computes totals, stamps
// UTC timestamps, and persists the immutable record.
//
// Ordering is deliberate: validation always completes before the allocator
// is called, so a rejected request can never burn a sequence number. Once a
// number has been allocated the insert is carried out even if the client
// has gone away, because the number is already spent and there is no
// rollback of allocations.
//
// Service-level errors (e.g., ErrStoreUnconfigured, ErrReceiptNotFound) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vellixao/go-receipt-backend/internal/domain"
)

// ReceiptStore defines the persistence contract required by ReceiptService:
// an atomic increment-and-read counter plus insert/lookup/list over receipt
// documents. Implementations must be safe for concurrent use; uniqueness of
// receipt numbers rests entirely on NextReceiptNumber being atomic and
// linearizable with respect to all callers.
type ReceiptStore interface {
	// NextReceiptNumber atomically increments the receipt counter and
	// returns the new value, creating the counter at 1 on first use.
	NextReceiptNumber(ctx context.Context, db *gorm.DB) (int64, error)

	// InsertReceipt durably persists a fully-formed receipt.
	InsertReceipt(ctx context.Context, db *gorm.DB, r *domain.Receipt) error

	// GetReceiptByNumber fetches a receipt by number.
	GetReceiptByNumber(ctx context.Context, db *gorm.DB, number int64) (*domain.Receipt, error)

	// GetLatestReceipt returns the receipt with the maximum number.
	GetLatestReceipt(ctx context.Context, db *gorm.DB) (*domain.Receipt, error)

	// ListRecentReceipts returns up to limit receipts, number descending.
	ListRecentReceipts(ctx context.Context, db *gorm.DB, limit int) ([]domain.Receipt, error)
}

// ItemInput is a single line item as submitted by a client. Quantity is a
// pointer so an omitted value can default to 1 at the service boundary.
type ItemInput struct {
	Name     string
	Quantity *int
	Price    float64
}

// CreateReceiptInput carries the client-submitted fields of a new receipt.
type CreateReceiptInput struct {
	CustomerName *string
	Items        []ItemInput
	Notes        *string
}

// ReceiptService provides receipt-level operations: creating a numbered
// receipt and reading persisted ones. The service holds no mutable state of
// its own; the DB handle is the only shared resource and is safe for
// concurrent use.
type ReceiptService struct {
	// DB is the GORM handle used for persistence. A nil DB means the store
	// was never configured; every operation then fails with
	// ErrStoreUnconfigured without attempting any work.
	DB *gorm.DB
	// Store is the receipt store used by this service.
	Store ReceiptStore

	// Brand is the static merchant identity snapshotted into every receipt.
	Brand domain.Brand

	// DefaultLimit is used when a list request carries no usable limit.
	DefaultLimit int
	// MaxLimit caps the list limit.
	MaxLimit int
}

// NewReceiptService constructs a ReceiptService with sane list limits.
func NewReceiptService(db *gorm.DB, store ReceiptStore, brand domain.Brand) *ReceiptService {
	return &ReceiptService{
		DB:           db,
		Store:        store,
		Brand:        brand,
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}

// Create validates the input, allocates the next receipt number, computes
// totals, and persists the new receipt.
//
// Semantics:
//   - The store must be configured; otherwise ErrStoreUnconfigured is
//     returned before anything else happens.
//   - Every item is validated (non-empty name, quantity >= 1 with a default
//     of 1 when omitted, price >= 0) before the allocator runs, so invalid
//     input never advances the counter.
//   - subtotal = sum(quantity x price); an empty item list yields 0.
//   - total equals subtotal today and is stored as its own field.
//   - created_at and updated_at are stamped with the same UTC instant.
//   - The insert runs on a context detached from request cancellation: a
//     client disconnect after allocation does not abandon the spent number.
func (s *ReceiptService) Create(ctx context.Context, in CreateReceiptInput) (*domain.Receipt, error) {
	if s.DB == nil {
		return nil, ErrStoreUnconfigured
	}

	items, err := normalizeItems(in.Items)
	if err != nil {
		return nil, err
	}

	number, err := s.Store.NextReceiptNumber(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	subtotal := computeSubtotal(items)
	now := time.Now().UTC()
	r := &domain.Receipt{
		Number:       number,
		Brand:        s.Brand,
		CustomerName: in.CustomerName,
		Items:        items,
		Notes:        in.Notes,
		Subtotal:     subtotal,
		Total:        subtotal, // extend here if taxes/fees are ever added
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The number is spent; finish the insert even if the caller is gone.
	if err := s.Store.InsertReceipt(context.WithoutCancel(ctx), s.DB, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Latest returns the receipt with the highest number, or ErrReceiptNotFound
// when none exist.
func (s *ReceiptService) Latest(ctx context.Context) (*domain.Receipt, error) {
	if s.DB == nil {
		return nil, ErrStoreUnconfigured
	}
	r, err := s.Store.GetLatestReceipt(ctx, s.DB)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	return r, nil
}

// ByNumber returns the receipt with the given number, or ErrReceiptNotFound
// when absent. Numbers below 1 are never issued and short-circuit.
func (s *ReceiptService) ByNumber(ctx context.Context, number int64) (*domain.Receipt, error) {
	if s.DB == nil {
		return nil, ErrStoreUnconfigured
	}
	if number < 1 {
		return nil, ErrReceiptNotFound
	}
	r, err := s.Store.GetReceiptByNumber(ctx, s.DB, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	return r, nil
}

// List returns up to limit receipts ordered by number descending. A limit
// below 1 falls back to the default; values above MaxLimit are clamped.
// An empty store yields an empty slice, not an error.
func (s *ReceiptService) List(ctx context.Context, limit int) ([]domain.Receipt, error) {
	if s.DB == nil {
		return nil, ErrStoreUnconfigured
	}
	if limit < 1 {
		limit = s.DefaultLimit
	}
	if s.MaxLimit > 0 && limit > s.MaxLimit {
		limit = s.MaxLimit
	}
	out, err := s.Store.ListRecentReceipts(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Receipt{}
	}
	return out, nil
}

// normalizeItems validates every submitted item and applies the quantity
// default. It returns the first violation as a service sentinel error; no
// item list with a violation gets past this point, so the allocator never
// runs for a rejected request.
func normalizeItems(in []ItemInput) (domain.ReceiptItems, error) {
	items := make(domain.ReceiptItems, 0, len(in))
	for _, it := range in {
		if strings.TrimSpace(it.Name) == "" {
			return nil, ErrItemNameRequired
		}
		qty := 1
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		if qty < 1 {
			return nil, ErrInvalidQuantity
		}
		if it.Price < 0 {
			return nil, ErrInvalidPrice
		}
		items = append(items, domain.ReceiptItem{
			Name:     it.Name,
			Quantity: qty,
			Price:    it.Price,
		})
	}
	return items, nil
}

// computeSubtotal sums quantity x unit price over all items.
func computeSubtotal(items domain.ReceiptItems) float64 {
	var sum float64
	for _, it := range items {
		sum += float64(it.Quantity) * it.Price
	}
	return sum
}
