package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// GatewayMock is an in-memory Gateway for tests and local runs without
// provider credentials.  Payments must be seeded with PutPayment before they
// can be fetched or refunded.
type GatewayMock struct {
	mock sync.Mutex

	Secret string

	Orders   map[string]Order
	Payments map[string]PaymentInfo
	Refunds  []RefundInfo

	// RefundStatus is reported for new refunds; empty means "processed".
	RefundStatus string
	// Err, when set, is returned by every remote call.
	Err error

	seq int
}

// NewGatewayMock returns a mock signing with secret.
func NewGatewayMock(secret string) *GatewayMock {
	return &GatewayMock{Secret: secret}
}

func (m *GatewayMock) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	if m.Err != nil {
		return Order{}, m.Err
	}
	if m.Orders == nil {
		m.Orders = make(map[string]Order)
	}
	m.seq++
	o := Order{ID: fmt.Sprintf("order_%d", m.seq), Amount: amount, Currency: currency}
	m.Orders[o.ID] = o
	return o, nil
}

// PutPayment seeds the provider-side record of a payment.
func (m *GatewayMock) PutPayment(p PaymentInfo) {
	m.mock.Lock()
	defer m.mock.Unlock()
	if m.Payments == nil {
		m.Payments = make(map[string]PaymentInfo)
	}
	m.Payments[p.ID] = p
}

func (m *GatewayMock) FetchPayment(ctx context.Context, paymentID string) (PaymentInfo, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	if m.Err != nil {
		return PaymentInfo{}, m.Err
	}
	p, ok := m.Payments[paymentID]
	if !ok {
		return PaymentInfo{}, fmt.Errorf("%w: payment %s not found", ErrUnavailable, paymentID)
	}
	return p, nil
}

func (m *GatewayMock) Refund(ctx context.Context, paymentID string, amount int64) (RefundInfo, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	if m.Err != nil {
		return RefundInfo{}, m.Err
	}
	m.seq++
	status := m.RefundStatus
	if status == "" {
		status = "processed"
	}
	rf := RefundInfo{ID: fmt.Sprintf("rfnd_%d", m.seq), Status: status, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	m.Refunds = append(m.Refunds, rf)
	return rf, nil
}

func (m *GatewayMock) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(m.Secret, orderID, paymentID, signature)
}

// RefundCount returns the number of refunds issued so far.
func (m *GatewayMock) RefundCount() int {
	m.mock.Lock()
	defer m.mock.Unlock()
	return len(m.Refunds)
}
