package services

import "errors"

var (
	ErrCartEmpty           = errors.New("cart is empty")
	ErrNotInCart           = errors.New("product is not in the cart")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrUnknownCreditPeriod = errors.New("unknown credit period")
	ErrInvalidMode         = errors.New("confirmation mode must be KACHA or PAKKA")
	ErrMissingAddress      = errors.New("delivery address is incomplete")
	ErrNoAccount           = errors.New("no account bound to session")
	ErrOrderNotFound       = errors.New("order not found")

	// ErrReverted wraps a failed remote cart write; the local cart has been
	// resynced from the backend.
	ErrReverted = errors.New("cart change was not saved")
	// ErrStale means the backend could not be reached and the lines come
	// from the local snapshot.
	ErrStale             = errors.New("cart may be out of date")
	ErrSubmissionPending = errors.New("an order for this session is already being placed")
)
