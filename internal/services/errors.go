// Package services defines the business logic for issuing and retrieving
// receipts. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrStoreUnconfigured indicates that the receipt store was never
	// configured (missing connection settings at startup). Every
	// data-dependent operation returns it uniformly; no partial work is
	// attempted.
	ErrStoreUnconfigured = errors.New("store not configured")

	// ErrReceiptNotFound indicates that no receipt matches the requested
	// number, or that no receipts exist at all for a latest lookup.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrItemNameRequired is returned when a line item has an empty name.
	ErrItemNameRequired = errors.New("item name is required")

	// ErrInvalidQuantity is returned when a line item quantity is < 1.
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")

	// ErrInvalidPrice is returned when a line item unit price is negative.
	ErrInvalidPrice = errors.New("item price must not be negative")
)
