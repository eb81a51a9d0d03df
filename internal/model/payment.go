package model

import "time"

// Payment statuses.
const (
	PaymentCreated  = "CREATED"
	PaymentSuccess  = "SUCCESS"
	PaymentFailed   = "FAILED"
	PaymentRefunded = "REFUNDED"
)

// Refund statuses.
const (
	RefundPending   = "PENDING"
	RefundProcessed = "PROCESSED"
	RefundFailed    = "FAILED"
)

// Payment is one gateway order created for a booking.  Amounts are in the
// gateway's minor unit (paise).  GatewayPaymentID is only known after the
// customer completes checkout and the capture has been verified.
//
// Fields:
//  ID               – primary key identifier.
//  BookingCode      – booking the order pays for.
//  OrderID          – gateway order id, unique.
//  GatewayPaymentID – gateway payment id, set on SUCCESS.
//  Amount           – charge in paise.
//  Currency         – ISO currency code.
//  Method           – payment method reported by the gateway (card, upi, ...).
//  Status           – CREATED, SUCCESS, FAILED or REFUNDED.
//  RefundedAmount   – cumulative refunded paise, never above Amount.
type Payment struct {
	ID               uint64    `json:"-"`
	BookingCode      string    `json:"booking_id"`
	UserID           *uint64   `json:"user_id,omitempty"`
	OrderID          string    `json:"order_id"`
	GatewayPaymentID *string   `json:"payment_id,omitempty"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Method           *string   `json:"payment_method,omitempty"`
	Status           string    `json:"payment_status"`
	RefundedAmount   int64     `json:"refunded_amount"`
	CreatedAt        time.Time `json:"created_at"`
}

// Remaining returns the refundable balance in paise.
func (p Payment) Remaining() int64 { return p.Amount - p.RefundedAmount }

// Refund is one gateway refund transaction against a payment.
type Refund struct {
	ID              uint64     `json:"-"`
	PaymentID       uint64     `json:"-"`
	GatewayRefundID *string    `json:"refund_id,omitempty"`
	Amount          int64      `json:"amount"`
	Status          string     `json:"status"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
