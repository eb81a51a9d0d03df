package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// Razorpay talks to the Razorpay REST API.  It is constructed once from
// configuration and injected into the payment service.
type Razorpay struct {
	client *razorpay.Client
	secret string
}

// NewRazorpay returns a client for the given key pair.
func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{client: razorpay.NewClient(keyID, keySecret), secret: keySecret}
}

// CreateOrder creates an order for amount paise.
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	n := make(map[string]interface{}, len(notes))
	for k, v := range notes {
		n[k] = v
	}
	body, err := r.client.Order.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    n,
	}, nil)
	if err != nil {
		return Order{}, fmt.Errorf("%w: create order: %v", ErrUnavailable, err)
	}
	o := Order{ID: str(body, "id"), Amount: num(body, "amount"), Currency: strings.ToUpper(str(body, "currency"))}
	if o.ID == "" {
		return Order{}, fmt.Errorf("%w: create order: empty id", ErrUnavailable)
	}
	if o.Currency == "" {
		o.Currency = currency
	}
	return o, nil
}

// FetchPayment returns the authoritative payment record.
func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (PaymentInfo, error) {
	if err := ctx.Err(); err != nil {
		return PaymentInfo{}, err
	}
	body, err := r.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("%w: fetch payment: %v", ErrUnavailable, err)
	}
	return PaymentInfo{
		ID:       str(body, "id"),
		OrderID:  str(body, "order_id"),
		Status:   strings.ToLower(str(body, "status")),
		Amount:   num(body, "amount"),
		Currency: strings.ToUpper(str(body, "currency")),
		Method:   str(body, "method"),
	}, nil
}

// Refund refunds amount paise of a captured payment.
func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount int64) (RefundInfo, error) {
	if err := ctx.Err(); err != nil {
		return RefundInfo{}, err
	}
	body, err := r.client.Payment.Refund(paymentID, int(amount), nil, nil)
	if err != nil {
		return RefundInfo{}, fmt.Errorf("%w: refund: %v", ErrUnavailable, err)
	}
	info := RefundInfo{ID: str(body, "id"), Status: strings.ToLower(str(body, "status"))}
	if ts := num(body, "created_at"); ts > 0 {
		info.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return info, nil
}

// VerifySignature checks a checkout callback signature with the key secret.
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(r.secret, orderID, paymentID, signature)
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// num reads a JSON number, which the client decodes as float64.
func num(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
