// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/vellixao/go-receipt-backend/internal/domain"
)

// ReceiptsStats returns aggregate metadata for the receipt table: the total
// number of rows and the maximum receipt number among them.
//
// It executes two lightweight queries. When the store is empty, the returned
// count is 0 and maxNumber is 0. Because receipts are immutable and numbers
// only ever grow, the (count, maxNumber) pair changes exactly when the data
// changes, which makes it a sound ETag input.
//
// Return values:
//   - count:     total persisted receipts
//   - maxNumber: greatest receipt number, or 0 if no rows
//   - err:       database error, if any
func ReceiptsStats(ctx context.Context, db *gorm.DB) (count int64, maxNumber int64, err error) {
	q := db.WithContext(ctx).Model(&domain.Receipt{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	// Get the max number (avoid MAX() -> TEXT in SQLite)
	var row struct {
		Number int64
	}
	if err = q.Select("number").Order("number DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.Number, nil
}
