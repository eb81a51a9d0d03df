// Package service holds the booking core: availability checks, the slot
// allocator, the payment order lifecycle and ticket scanning, plus the
// admin operations on slots, closures and bookings.  Every failure a
// caller may branch on is one of the sentinel errors below; details are
// attached with fmt.Errorf("%w: ...").
package service

import "errors"

// Availability and allocation.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrGameNotFound      = errors.New("game not found")
	ErrSlotInvalid       = errors.New("one or more slots are invalid for this game")
	ErrClosureConflict   = errors.New("selected slot overlaps a closure")
	ErrSlotAlreadyBooked = errors.New("one or more selected slots are already booked")
)

// Bookings.
var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingNotPending = errors.New("booking is not pending payment")
	ErrInvalidTransition = errors.New("invalid booking status transition")
)

// Payments and refunds.
var (
	ErrPaymentsDisabled        = errors.New("payments are not configured")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrPaymentOrderNotFound    = errors.New("payment order not found")
	ErrInvalidSignature        = errors.New("invalid payment signature")
	ErrOrderMismatch           = errors.New("order mismatch")
	ErrPaymentNotCaptured      = errors.New("payment not captured")
	ErrAmountMismatch          = errors.New("amount mismatch")
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentNotVerified      = errors.New("payment is not verified yet")
	ErrRefundNotAllowed        = errors.New("only successful payments can be refunded")
	ErrRefundInProgress        = errors.New("a refund is already in progress for this payment")
	ErrAlreadyFullyRefunded    = errors.New("payment is already fully refunded")
	ErrInvalidRefundAmount     = errors.New("invalid refund amount")
	ErrRefundExceedsBalance    = errors.New("refund amount exceeds refundable balance")
)

// Slot and closure administration.
var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotExists      = errors.New("a slot already starts at this hour for the game")
	ErrSlotInUse       = errors.New("slot has active bookings; cancel bookings first")
	ErrNoSlotsCreated  = errors.New("no slots generated")
	ErrClosureNotFound = errors.New("closure not found")
	ErrClosureExists   = errors.New("closure already exists")
)
