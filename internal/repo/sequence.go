// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the sequence allocator for receipt
// numbers.
//
// The allocator maintains a single row in the counters table, keyed by
// domain.CounterID, whose seq column holds the last-issued value. An
// allocation is one atomic upsert-increment-return statement, so two
// concurrent callers can never observe the same value and no application
// lock is needed. The first allocation creates the row and yields 1.
//
// Allocations are durable before they are returned: once a caller sees a
// number, that number is spent even if the receipt insert that follows it
// fails. Gaps in the sequence are accepted; reuse is not.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vellixao/go-receipt-backend/internal/domain"
)

// NextReceiptNumber atomically increments the receipt-number counter and
// returns the new value. The counter row is created at 1 on first use.
//
// The increment happens in a single round trip (INSERT ... ON CONFLICT DO
// UPDATE ... RETURNING), so concurrent callers each receive a distinct,
// strictly increasing value. If the statement unexpectedly yields no row,
// the counter is created explicitly at 1; a concurrent creation surfaces as
// a constraint error rather than a duplicate allocation.
func NextReceiptNumber(ctx context.Context, db *gorm.DB) (int64, error) {
	var seq int64
	res := db.WithContext(ctx).Raw(
		`INSERT INTO counters (id, seq) VALUES (?, 1)
		 ON CONFLICT(id) DO UPDATE SET seq = seq + 1
		 RETURNING seq`,
		domain.CounterID,
	).Scan(&seq)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// Store-specific anomaly: the upsert reported no resulting row.
		// Create the counter explicitly at 1. A racing creator trips the
		// primary-key constraint and the error propagates instead of two
		// callers both claiming 1.
		c := &domain.SequenceCounter{ID: domain.CounterID, Seq: 1}
		if err := db.WithContext(ctx).Create(c).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	return seq, nil
}

// CurrentReceiptNumber returns the last-issued receipt number without
// advancing the counter, or 0 when no number has ever been allocated.
func CurrentReceiptNumber(ctx context.Context, db *gorm.DB) (int64, error) {
	var c domain.SequenceCounter
	err := db.WithContext(ctx).
		Where("id = ?", domain.CounterID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Seq, nil
}
