package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-booking/internal/model"
)

// PaymentRepo persists gateway orders and refunds.  The payments table
// carries a generated open_order_key so a booking can have only one unpaid
// order, and refunds carry a pending_key so a payment can have only one
// PENDING refund at a time.
type PaymentRepo struct {
	db *sqlx.DB
}

// NewPaymentRepo returns a PaymentRepo bound to db.
func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

type paymentRow struct {
	ID               uint64         `db:"id"`
	BookingCode      string         `db:"booking_code"`
	UserID           sql.NullInt64  `db:"user_id"`
	OrderID          string         `db:"order_id"`
	GatewayPaymentID sql.NullString `db:"gateway_payment_id"`
	Amount           int64          `db:"amount"`
	Currency         string         `db:"currency"`
	Method           sql.NullString `db:"method"`
	Status           string         `db:"status"`
	RefundedAmount   int64          `db:"refunded_amount"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (row paymentRow) toModel() model.Payment {
	p := model.Payment{
		ID:             row.ID,
		BookingCode:    row.BookingCode,
		OrderID:        row.OrderID,
		Amount:         row.Amount,
		Currency:       row.Currency,
		Status:         row.Status,
		RefundedAmount: row.RefundedAmount,
		CreatedAt:      row.CreatedAt,
	}
	if row.UserID.Valid {
		uid := uint64(row.UserID.Int64)
		p.UserID = &uid
	}
	if row.GatewayPaymentID.Valid {
		gid := row.GatewayPaymentID.String
		p.GatewayPaymentID = &gid
	}
	if row.Method.Valid {
		m := row.Method.String
		p.Method = &m
	}
	return p
}

const paymentSelect = `SELECT id, booking_code, user_id, order_id, gateway_payment_id, amount, currency,
       method, status, refunded_amount, created_at FROM payments`

func (r *PaymentRepo) getOne(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) (model.Payment, error) {
	var row paymentRow
	if err := sqlx.GetContext(ctx, q, &row, paymentSelect+` WHERE `+where, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Payment{}, ErrNotFound
		}
		return model.Payment{}, err
	}
	return row.toModel(), nil
}

// OpenOrder returns the latest unpaid CREATED order for a booking, or
// ErrNotFound.
func (r *PaymentRepo) OpenOrder(ctx context.Context, bookingCode string) (model.Payment, error) {
	return r.getOne(ctx, r.db,
		`booking_code = ? AND status = ? AND gateway_payment_id IS NULL ORDER BY created_at DESC, id DESC LIMIT 1`,
		bookingCode, model.PaymentCreated)
}

// Create inserts a payment row.  A second open order for the same booking
// returns ErrOpenOrderExists.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (booking_code, user_id, order_id, amount, currency, status, refunded_amount, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.BookingCode, p.UserID, p.OrderID, p.Amount, p.Currency, p.Status, p.RefundedAmount, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrOpenOrderExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt = now
	return nil
}

// GetByOrder returns the payment for a gateway order.  When bookingCode is
// non-empty the order must also belong to that booking.
func (r *PaymentRepo) GetByOrder(ctx context.Context, orderID, bookingCode string) (model.Payment, error) {
	if bookingCode == "" {
		return r.getOne(ctx, r.db, `order_id = ?`, orderID)
	}
	return r.getOne(ctx, r.db, `order_id = ? AND booking_code = ?`, orderID, bookingCode)
}

// GetByGatewayID returns the payment with the given gateway payment id.
func (r *PaymentRepo) GetByGatewayID(ctx context.Context, gatewayPaymentID string) (model.Payment, error) {
	return r.getOne(ctx, r.db, `gateway_payment_id = ?`, gatewayPaymentID)
}

// MarkFailed flips a CREATED payment to FAILED.  Payments in any other
// status are left alone.
func (r *PaymentRepo) MarkFailed(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`, model.PaymentFailed, id, model.PaymentCreated)
	return err
}

// ConfirmParams carries verified capture facts from the gateway.
type ConfirmParams struct {
	PaymentID        uint64
	BookingCode      string
	GatewayPaymentID string
	Method           string
	Currency         string
}

// Confirm records a verified capture: the payment moves CREATED -> SUCCESS
// and the booking moves Payment Pending -> Confirmed in one transaction.
// If the payment is no longer CREATED, ErrStateChanged is returned and
// nothing is written.  bookingConfirmed is false when the booking was not
// pending (for example cancelled by an admin meanwhile); the payment is
// still recorded so it can be refunded.
func (r *PaymentRepo) Confirm(ctx context.Context, p ConfirmParams) (bookingConfirmed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, gateway_payment_id = ?, method = ?, currency = ?
         WHERE id = ? AND status = ? AND gateway_payment_id IS NULL`,
		model.PaymentSuccess, p.GatewayPaymentID, nullIfEmpty(p.Method), p.Currency, p.PaymentID, model.PaymentCreated)
	if err != nil {
		if isDuplicate(err) {
			return false, ErrStateChanged
		}
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, ErrStateChanged
	}
	res, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE code = ? AND status = ?`,
		model.BookingConfirmed, p.BookingCode, model.BookingPaymentPending)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return n == 1, nil
}

// PendingRefundExists reports whether a refund for the payment is still
// PENDING at the gateway.
func (r *PaymentRepo) PendingRefundExists(ctx context.Context, paymentID uint64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM refunds WHERE payment_id = ? AND status = ?`, paymentID, model.RefundPending)
	return n > 0, err
}

// BeginRefund reserves a refund before the gateway is called.  Under a row
// lock on the payment it checks the balance and inserts a PENDING refund
// row, which the pending_key unique index limits to one per payment.  It
// returns ErrRefundPending or ErrRefundExceeds when the reservation is not
// possible.
func (r *PaymentRepo) BeginRefund(ctx context.Context, paymentID uint64, amount int64) (model.Refund, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Refund{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var bal struct {
		Amount   int64 `db:"amount"`
		Refunded int64 `db:"refunded_amount"`
	}
	if err := tx.GetContext(ctx, &bal,
		`SELECT amount, refunded_amount FROM payments WHERE id = ? FOR UPDATE`, paymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Refund{}, ErrNotFound
		}
		return model.Refund{}, err
	}
	if bal.Refunded+amount > bal.Amount {
		return model.Refund{}, ErrRefundExceeds
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO refunds (payment_id, amount, status, created_at) VALUES (?, ?, ?, ?)`,
		paymentID, amount, model.RefundPending, now)
	if err != nil {
		if isDuplicate(err) {
			return model.Refund{}, ErrRefundPending
		}
		return model.Refund{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Refund{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Refund{}, err
	}
	committed = true
	return model.Refund{ID: uint64(id), PaymentID: paymentID, Amount: amount, Status: model.RefundPending, CreatedAt: now}, nil
}

// AbortRefund removes a reservation made by BeginRefund when the gateway
// call failed, leaving no trace of the attempt.
func (r *PaymentRepo) AbortRefund(ctx context.Context, refundID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refunds WHERE id = ? AND gateway_refund_id IS NULL`, refundID)
	return err
}

// CompleteRefund stores the gateway outcome on a reserved refund and adds
// its amount to the payment's refunded total, switching the payment to
// REFUNDED once the total reaches the amount.  The status is computed
// from the balance before the increment, so the result does not depend on
// the order in which SET assignments are applied.  The updated payment is
// returned.
func (r *PaymentRepo) CompleteRefund(ctx context.Context, rf model.Refund) (model.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Payment{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`UPDATE refunds SET gateway_refund_id = ?, status = ?, processed_at = ? WHERE id = ?`,
		rf.GatewayRefundID, rf.Status, rf.ProcessedAt, rf.ID); err != nil {
		return model.Payment{}, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE payments
            SET status = IF(refunded_amount + ? >= amount, ?, status),
                refunded_amount = refunded_amount + ?
          WHERE id = ? AND refunded_amount + ? <= amount`,
		rf.Amount, model.PaymentRefunded, rf.Amount, rf.PaymentID, rf.Amount)
	if err != nil {
		return model.Payment{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Payment{}, ErrRefundExceeds
	}
	p, err := r.getOne(ctx, tx, `id = ?`, rf.PaymentID)
	if err != nil {
		return model.Payment{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Payment{}, err
	}
	committed = true
	return p, nil
}

// ListRefunds returns the refunds of a payment, oldest first.
func (r *PaymentRepo) ListRefunds(ctx context.Context, paymentID uint64) ([]model.Refund, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, payment_id, gateway_refund_id, amount, status, processed_at, created_at
           FROM refunds WHERE payment_id = ? ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Refund{}
	for rows.Next() {
		var rf model.Refund
		var gid sql.NullString
		var processed sql.NullTime
		if err := rows.Scan(&rf.ID, &rf.PaymentID, &gid, &rf.Amount, &rf.Status, &processed, &rf.CreatedAt); err != nil {
			return nil, err
		}
		if gid.Valid {
			s := gid.String
			rf.GatewayRefundID = &s
		}
		if processed.Valid {
			t := processed.Time
			rf.ProcessedAt = &t
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
