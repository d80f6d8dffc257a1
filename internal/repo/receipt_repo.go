// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Receipt
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition. In particular, InsertReceipt does not
// check uniqueness of the receipt number: the sequence allocator is the sole
// source of uniqueness, and a correct caller never inserts a colliding
// number.
//
// Error semantics:
//   - When a receipt is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (connectivity issues, missing tables, etc.), the raw
//     gorm error is propagated.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vellixao/go-receipt-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertReceipt durably persists a fully-formed receipt. The receipt is
// immutable after this call; there is no update path. On failure, the DB
// error is returned and the allocated number stays spent (gaps accepted).
func InsertReceipt(ctx context.Context, db *gorm.DB, r *domain.Receipt) error {
	return db.WithContext(ctx).Create(r).Error
}

// GetReceiptByNumber fetches a single receipt by its number. If the record
// does not exist, it returns ErrNotFound. On other DB errors, the raw error
// is returned.
func GetReceiptByNumber(ctx context.Context, db *gorm.DB, number int64) (*domain.Receipt, error) {
	var r domain.Receipt
	err := db.WithContext(ctx).
		Where("number = ?", number).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetLatestReceipt returns the receipt with the maximum number, or
// ErrNotFound when the store is empty.
func GetLatestReceipt(ctx context.Context, db *gorm.DB) (*domain.Receipt, error) {
	var r domain.Receipt
	err := db.WithContext(ctx).
		Order("number desc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecentReceipts returns up to limit receipts ordered by number
// descending (most recent first). It returns an empty slice when the store
// is empty. A limit < 1 is rejected by the caller (service layer); it is
// passed through verbatim here.
func ListRecentReceipts(ctx context.Context, db *gorm.DB, limit int) ([]domain.Receipt, error) {
	var out []domain.Receipt
	err := db.WithContext(ctx).
		Order("number desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountReceipts returns the total number of persisted receipts.
func CountReceipts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Receipt{}).
		Count(&total).Error
	return total, err
}

// TableNames returns up to max table names from the underlying database,
// for the diagnostic endpoint. Names beyond max are dropped.
func TableNames(db *gorm.DB, max int) ([]string, error) {
	tables, err := db.Migrator().GetTables()
	if err != nil {
		return nil, err
	}
	if max > 0 && len(tables) > max {
		tables = tables[:max]
	}
	return tables, nil
}

// Ping verifies connectivity to the underlying database.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsNotFound reports whether err is the not-found sentinel, in a
// driver-agnostic way.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
