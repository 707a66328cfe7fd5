package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrInvoiceNotFound = errors.New("invoice not found")

	ErrSlotTaken = errors.New("slot quantum already claimed")
)
