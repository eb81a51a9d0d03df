package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/turf-booking/internal/gateway"
	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/metrics"
	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/notify"
	"github.com/iliyamo/turf-booking/internal/repository"
)

// PaymentService ties pending bookings to gateway orders, confirms them
// once a capture is verified and issues refunds.  The gateway client is
// injected; a nil gateway disables every operation with
// ErrPaymentsDisabled.
type PaymentService struct {
	bookings *BookingService
	store    PaymentStore
	gw       gateway.Gateway
	notifier notify.Notifier
	currency string

	notifyTimeout time.Duration
}

// defaultNotifyTimeout caps the confirmation send inside VerifyPayment.
const defaultNotifyTimeout = 10 * time.Second

// NewPaymentService wires the payment lifecycle.  notifier may be nil.
func NewPaymentService(bookings *BookingService, store PaymentStore, gw gateway.Gateway, notifier notify.Notifier, currency string) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		bookings:      bookings,
		store:         store,
		gw:            gw,
		notifier:      notifier,
		currency:      strings.ToUpper(currency),
		notifyTimeout: defaultNotifyTimeout,
	}
}

// Enabled reports whether a gateway is configured.
func (s *PaymentService) Enabled() bool { return s.gw != nil }

// CreateOrderInput names an existing pending booking or describes a new
// one.  Exactly one of the two must be set.
type CreateOrderInput struct {
	BookingCode string
	New         *NewBooking
}

// OrderResult is what the checkout widget needs to collect the payment.
type OrderResult struct {
	Booking  model.Booking
	OrderID  string
	Amount   int64 // paise
	Currency string
}

// CreateOrder returns a gateway order for a pending booking, creating the
// booking first when a new one is described.  A booking has at most one
// unpaid order; repeated calls return it instead of creating another.
// A booking created by this call is cancelled again when no order could
// be stored for it, so the same request can be retried.
func (s *PaymentService) CreateOrder(ctx context.Context, in CreateOrderInput) (res OrderResult, err error) {
	if s.gw == nil {
		return OrderResult{}, ErrPaymentsDisabled
	}
	if (in.BookingCode == "") == (in.New == nil) {
		return OrderResult{}, fmt.Errorf("%w: provide either a booking id or a new booking", ErrInvalidInput)
	}
	log := logging.FromContext(ctx)

	code := in.BookingCode
	if in.New != nil {
		nb := *in.New
		nb.Status = model.BookingPaymentPending
		created, err := s.bookings.CreateBooking(ctx, nb)
		if err != nil {
			return OrderResult{}, err
		}
		code = created.Code
		defer func() {
			if err != nil {
				s.releaseBooking(ctx, code)
			}
		}()
	}

	b, err := s.bookings.getBooking(ctx, code)
	if err != nil {
		return OrderResult{}, err
	}
	if b.Status != model.BookingPaymentPending {
		return OrderResult{}, ErrBookingNotPending
	}

	if open, err := s.store.OpenOrder(ctx, code); err == nil {
		return orderResult(b, open), nil
	} else if !isNotFound(err) {
		return OrderResult{}, err
	}

	amount := b.TotalPrice * 100
	if amount <= 0 {
		return OrderResult{}, ErrInvalidAmount
	}
	guestEmail := ""
	if b.GuestEmail != nil {
		guestEmail = *b.GuestEmail
	}
	order, err := s.gw.CreateOrder(ctx, amount, s.currency, code, map[string]string{
		"bookingId":  code,
		"guestEmail": guestEmail,
	})
	if err != nil {
		return OrderResult{}, gatewayErr(ctx, err)
	}
	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}

	p := model.Payment{
		BookingCode: code,
		UserID:      b.UserID,
		OrderID:     order.ID,
		Amount:      amount,
		Currency:    currency,
		Status:      model.PaymentCreated,
	}
	if err := s.store.Create(ctx, &p); err != nil {
		if !errors.Is(err, repository.ErrOpenOrderExists) {
			return OrderResult{}, err
		}
		// A concurrent call stored its order first; hand that one out.
		open, err := s.store.OpenOrder(ctx, code)
		if err != nil {
			return OrderResult{}, err
		}
		log.WithFields(logrus.Fields{"booking_id": code, "order_id": order.ID}).
			Info("discarding duplicate gateway order")
		return orderResult(b, open), nil
	}
	log.WithFields(logrus.Fields{"booking_id": code, "order_id": p.OrderID, "amount": amount}).Info("payment order created")
	return orderResult(b, p), nil
}

// releaseBooking cancels a pending booking, freeing its slot claims.  It
// runs after the request may already be cancelled.
func (s *PaymentService) releaseBooking(ctx context.Context, code string) {
	log := logging.FromContext(ctx).WithField("booking_id", code)
	ok, err := s.bookings.bookings.Transition(context.WithoutCancel(ctx), code,
		[]string{model.BookingPaymentPending}, model.BookingCancelled, nil)
	switch {
	case err != nil:
		log.WithError(err).Error("failed to release booking after order failure")
	case ok:
		log.Info("booking released after order failure")
	}
}

func orderResult(b model.Booking, p model.Payment) OrderResult {
	return OrderResult{Booking: b, OrderID: p.OrderID, Amount: p.Amount, Currency: p.Currency}
}

// VerifyInput is the checkout callback forwarded by the client.
type VerifyInput struct {
	BookingCode string
	OrderID     string
	PaymentID   string
	Signature   string
}

// VerifyResult is the payment and booking after verification.
type VerifyResult struct {
	Payment model.Payment
	Booking model.Booking
}

// VerifyPayment checks the checkout signature and the gateway's record of
// the payment, then confirms payment and booking together.  Repeating a
// successful call returns the same result without touching state.
func (s *PaymentService) VerifyPayment(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	if s.gw == nil {
		return VerifyResult{}, ErrPaymentsDisabled
	}
	log := logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": in.BookingCode, "order_id": in.OrderID})

	p, err := s.store.GetByOrder(ctx, in.OrderID, in.BookingCode)
	if err != nil {
		if isNotFound(err) {
			return VerifyResult{}, ErrPaymentOrderNotFound
		}
		return VerifyResult{}, err
	}
	if res, done, err := s.alreadyVerified(ctx, p, in.PaymentID); done {
		return res, err
	}
	if p.Status != model.PaymentCreated {
		metrics.PaymentVerifications.WithLabelValues("already_processed").Inc()
		return VerifyResult{}, fmt.Errorf("%w: payment is %s", ErrPaymentAlreadyProcessed, p.Status)
	}

	if !s.gw.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		if err := s.store.MarkFailed(ctx, p.ID); err != nil {
			log.WithError(err).Error("failed to mark payment failed")
		}
		metrics.PaymentVerifications.WithLabelValues("invalid_signature").Inc()
		log.Warn("payment signature rejected")
		return VerifyResult{}, ErrInvalidSignature
	}

	info, err := s.gw.FetchPayment(ctx, in.PaymentID)
	if err != nil {
		return VerifyResult{}, gatewayErr(ctx, err)
	}
	switch {
	case info.OrderID != in.OrderID:
		metrics.PaymentVerifications.WithLabelValues("order_mismatch").Inc()
		return VerifyResult{}, ErrOrderMismatch
	case info.Status != gateway.StatusCaptured:
		metrics.PaymentVerifications.WithLabelValues("not_captured").Inc()
		return VerifyResult{}, fmt.Errorf("%w (status: %s)", ErrPaymentNotCaptured, info.Status)
	case info.Amount != p.Amount:
		metrics.PaymentVerifications.WithLabelValues("amount_mismatch").Inc()
		return VerifyResult{}, ErrAmountMismatch
	}

	currency := strings.ToUpper(info.Currency)
	if currency == "" {
		currency = p.Currency
	}
	confirmed, err := s.store.Confirm(ctx, repository.ConfirmParams{
		PaymentID:        p.ID,
		BookingCode:      p.BookingCode,
		GatewayPaymentID: in.PaymentID,
		Method:           info.Method,
		Currency:         currency,
	})
	if err != nil {
		if !errors.Is(err, repository.ErrStateChanged) {
			return VerifyResult{}, err
		}
		// Lost a race with a concurrent verify of the same order.
		cur, gerr := s.store.GetByOrder(ctx, in.OrderID, in.BookingCode)
		if gerr != nil {
			return VerifyResult{}, gerr
		}
		if res, done, err := s.alreadyVerified(ctx, cur, in.PaymentID); done {
			return res, err
		}
		return VerifyResult{}, fmt.Errorf("%w: payment is %s", ErrPaymentAlreadyProcessed, cur.Status)
	}

	b, err := s.bookings.getBooking(ctx, p.BookingCode)
	if err != nil {
		return VerifyResult{}, err
	}
	p, err = s.store.GetByOrder(ctx, in.OrderID, in.BookingCode)
	if err != nil {
		return VerifyResult{}, err
	}
	metrics.PaymentVerifications.WithLabelValues("success").Inc()
	if !confirmed {
		log.WithField("status", b.Status).Warn("payment captured for a booking that is no longer pending; refund required")
		return VerifyResult{Payment: p, Booking: b}, nil
	}
	log.WithField("payment_id", in.PaymentID).Info("payment verified, booking confirmed")
	s.notifyConfirmed(ctx, b, p)
	return VerifyResult{Payment: p, Booking: b}, nil
}

// alreadyVerified reports done when p is SUCCESS with the same gateway
// payment id, returning the stored outcome.
func (s *PaymentService) alreadyVerified(ctx context.Context, p model.Payment, paymentID string) (VerifyResult, bool, error) {
	if p.Status != model.PaymentSuccess || p.GatewayPaymentID == nil || *p.GatewayPaymentID != paymentID {
		return VerifyResult{}, false, nil
	}
	b, err := s.bookings.getBooking(ctx, p.BookingCode)
	if err != nil {
		return VerifyResult{}, true, err
	}
	metrics.PaymentVerifications.WithLabelValues("idempotent").Inc()
	return VerifyResult{Payment: p, Booking: b}, true, nil
}

// notifyConfirmed makes one delivery attempt and discards its failure.
// The attempt survives a cancelled request but never outlives
// notifyTimeout.
func (s *PaymentService) notifyConfirmed(ctx context.Context, b model.Booking, p model.Payment) {
	if s.notifier == nil {
		return
	}
	msg := notify.BookingConfirmation{
		BookingCode:  b.Code,
		AmountRupees: int64(math.Round(float64(p.Amount) / 100)),
		Date:         b.Date,
		GameName:     b.GameName,
		Slots:        b.SlotLabels(),
		Name:         b.GuestName,
		ConfirmedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if p.GatewayPaymentID != nil {
		msg.PaymentID = *p.GatewayPaymentID
	}
	if b.GuestEmail != nil {
		msg.Email = *b.GuestEmail
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.BookingConfirmed(nctx, msg); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("booking_id", b.Code).Warn("confirmation notification failed")
	}
}

// RefundInput selects a payment by gateway payment id (or order id) and an
// optional amount in rupees.  A nil amount refunds the remaining balance.
type RefundInput struct {
	PaymentID    string
	AmountRupees *float64
}

// RefundResult is the payment after the refund and the refund itself.
type RefundResult struct {
	Payment model.Payment
	Refund  model.Refund
}

// RefundPayment refunds all or part of a verified payment.  At most one
// refund per payment is in flight at a time and the refunded total never
// exceeds the amount.
func (s *PaymentService) RefundPayment(ctx context.Context, in RefundInput) (RefundResult, error) {
	if s.gw == nil {
		return RefundResult{}, ErrPaymentsDisabled
	}
	log := logging.FromContext(ctx).WithField("payment_id", in.PaymentID)

	p, err := s.findPayment(ctx, in.PaymentID)
	if err != nil {
		return RefundResult{}, err
	}
	if p.GatewayPaymentID == nil {
		return RefundResult{}, ErrPaymentNotVerified
	}
	if p.Status != model.PaymentSuccess && p.Status != model.PaymentRefunded {
		return RefundResult{}, ErrRefundNotAllowed
	}
	pending, err := s.store.PendingRefundExists(ctx, p.ID)
	if err != nil {
		return RefundResult{}, err
	}
	if pending {
		return RefundResult{}, ErrRefundInProgress
	}
	remaining := p.Remaining()
	if remaining <= 0 {
		return RefundResult{}, ErrAlreadyFullyRefunded
	}
	amount := remaining
	if in.AmountRupees != nil {
		v := *in.AmountRupees
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return RefundResult{}, ErrInvalidRefundAmount
		}
		amount = int64(math.Round(v * 100))
		if amount <= 0 {
			return RefundResult{}, ErrInvalidRefundAmount
		}
	}
	if amount > remaining {
		return RefundResult{}, ErrRefundExceedsBalance
	}

	rf, err := s.store.BeginRefund(ctx, p.ID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRefundPending):
			return RefundResult{}, ErrRefundInProgress
		case errors.Is(err, repository.ErrRefundExceeds):
			return RefundResult{}, ErrRefundExceedsBalance
		}
		return RefundResult{}, err
	}

	info, err := s.gw.Refund(ctx, *p.GatewayPaymentID, amount)
	if err != nil {
		if aerr := s.store.AbortRefund(context.WithoutCancel(ctx), rf.ID); aerr != nil {
			log.WithError(aerr).Error("failed to release refund reservation")
		}
		return RefundResult{}, gatewayErr(ctx, err)
	}

	rf.GatewayRefundID = &info.ID
	rf.Status = refundStatus(info.Status)
	if !info.CreatedAt.IsZero() {
		at := info.CreatedAt
		rf.ProcessedAt = &at
	}
	updated, err := s.store.CompleteRefund(context.WithoutCancel(ctx), rf)
	if err != nil {
		log.WithError(err).WithField("refund_id", info.ID).Error("gateway refund issued but not recorded")
		return RefundResult{}, err
	}
	metrics.Refunds.WithLabelValues(rf.Status).Inc()
	log.WithFields(logrus.Fields{
		"refund_id": info.ID,
		"amount":    amount,
		"status":    rf.Status,
		"refunded":  updated.RefundedAmount,
	}).Info("refund issued")
	return RefundResult{Payment: updated, Refund: rf}, nil
}

func (s *PaymentService) findPayment(ctx context.Context, id string) (model.Payment, error) {
	if strings.TrimSpace(id) == "" {
		return model.Payment{}, fmt.Errorf("%w: payment id required", ErrInvalidInput)
	}
	p, err := s.store.GetByGatewayID(ctx, id)
	if err == nil {
		return p, nil
	}
	if !isNotFound(err) {
		return model.Payment{}, err
	}
	p, err = s.store.GetByOrder(ctx, id, "")
	if err != nil {
		if isNotFound(err) {
			return model.Payment{}, ErrPaymentNotFound
		}
		return model.Payment{}, err
	}
	return p, nil
}

// refundStatus maps the gateway's refund status onto ours.
func refundStatus(gw string) string {
	switch strings.ToLower(gw) {
	case "processed":
		return model.RefundProcessed
	case "failed":
		return model.RefundFailed
	default:
		return model.RefundPending
	}
}

func gatewayErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
