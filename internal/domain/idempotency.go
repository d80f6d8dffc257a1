// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed receipt
// creation, keyed by the client-supplied Idempotency-Key. It enables safe
// retries of POST /api/receipts by returning the originally issued receipt
// without allocating a second number.
type Idempotency struct {
	ID            string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Key           string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_key"`
	ReceiptNumber int64     `gorm:"type:INTEGER NOT NULL"`
	Status        int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt     time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
