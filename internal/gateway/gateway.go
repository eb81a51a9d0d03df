// Package gateway wraps the external payment provider.  The booking core
// only sees the Gateway interface; the Razorpay client and the in-memory
// mock both implement it.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the provider could not be reached or
// answered with a transport level failure.  No local state has been
// changed when it is returned, so the whole operation may be retried.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Order is a provider-side order created for a booking.
type Order struct {
	ID       string
	Amount   int64 // paise
	Currency string
}

// PaymentInfo is the provider's authoritative view of a payment.
type PaymentInfo struct {
	ID       string
	OrderID  string
	Status   string // created, authorized, captured, failed, refunded
	Amount   int64
	Currency string
	Method   string
}

// RefundInfo is the provider's answer to a refund request.
type RefundInfo struct {
	ID        string
	Status    string // pending, processed, failed
	CreatedAt time.Time
}

// Gateway is the payment provider contract used by the payment service.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error)
	FetchPayment(ctx context.Context, paymentID string) (PaymentInfo, error)
	Refund(ctx context.Context, paymentID string, amount int64) (RefundInfo, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// StatusCaptured is the provider status of a settled payment.
const StatusCaptured = "captured"
