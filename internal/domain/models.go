// Package domain defines the persistence models for receipts and the
// sequence counter backing receipt numbering. These types are mapped with
// GORM and form the core data layer of the receipt application.
package domain

import "time"

// CounterID is the fixed identifier of the receipt-number counter row.
const CounterID = "receipt_number"

// Brand is the static merchant identity embedded in every receipt. It is a
// snapshot value: a copy is persisted inside each receipt document at
// creation time so later brand changes never rewrite history.
//
// Fields:
//   - Name: merchant name displayed on receipts (required, non-empty).
//   - Phone: optional contact phone number.
//   - LogoURL: optional public URL to the brand logo image.
type Brand struct {
	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	LogoURL *string `json:"logo_url,omitempty"`
}

// ReceiptItem is a single line item on a receipt. Items are immutable once
// the receipt is created and their order is significant for display.
//
// Constraints (enforced at the service boundary, not by tags):
//   - Name must be non-empty.
//   - Quantity must be >= 1 (defaults to 1 when omitted in a request).
//   - Price is the unit price and must be >= 0.
type ReceiptItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// ReceiptItems is the ordered line-item list of a receipt. It is stored as
// a single JSON column so the persisted row keeps the document shape.
type ReceiptItems []ReceiptItem

// Receipt is the aggregate root: an immutable, sequentially numbered record
// of a sale. There is no update or delete path; rows are append-only.
//
// Fields:
//   - Number: externally visible identifier, >= 1, unique, strictly
//     increasing in allocation order. Assigned by the sequence allocator,
//     never by the database.
//   - Brand: snapshot of the merchant identity at creation time (JSON column).
//   - CustomerName: optional customer name.
//   - Items: ordered line items (JSON column); may be empty.
//   - Notes: optional free-form note.
//   - Subtotal: sum over items of quantity x unit price.
//   - Total: equal to Subtotal today; kept structurally separate as the
//     extension point for future tax/fee adjustments.
//   - CreatedAt / UpdatedAt: both set to the same UTC instant at creation;
//     UpdatedAt never changes afterwards because no update path exists.
type Receipt struct {
	Number       int64        `json:"number"        gorm:"primaryKey;autoIncrement:false"`
	Brand        Brand        `json:"brand"         gorm:"type:text;serializer:json"`
	CustomerName *string      `json:"customer_name,omitempty"`
	Items        ReceiptItems `json:"items"         gorm:"type:text;serializer:json"`
	Notes        *string      `json:"notes,omitempty"`
	Subtotal     float64      `json:"subtotal"      gorm:"not null"`
	Total        float64      `json:"total"         gorm:"not null"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Receipt.
func (Receipt) TableName() string { return "receipt" }

// SequenceCounter holds the last-issued value of a named monotonic counter.
// A single row with ID "receipt_number" backs receipt numbering: it is
// created lazily on first allocation, incremented on every subsequent one,
// and never decremented or reset.
type SequenceCounter struct {
	ID  string `json:"id"  gorm:"primaryKey;column:id"`
	Seq int64  `json:"seq" gorm:"not null"`
}

// TableName returns the database table name for SequenceCounter.
func (SequenceCounter) TableName() string { return "counters" }
