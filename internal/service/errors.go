package service

import "errors"

var (
	// ErrSlotNoLongerAvailable: every candidate in the group was taken
	// before we could reserve one, after retrying across the fairness order.
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")

	ErrCurrencyAlreadyLocked = errors.New("currency already locked for family")
	ErrNoCurrencyLocked      = errors.New("no currency locked for family")
	ErrPackageNotFound       = errors.New("package not found")
	ErrFamilyNotFound        = errors.New("family group not found")
	ErrEmptyBookingPayload   = errors.New("booking payload has no students")
	ErrEmptySlotGroup        = errors.New("slot group has no members")
	ErrUnknownOutcome        = errors.New("unknown follow-up outcome")
)
