// Package repository implements MySQL persistence for games, slots,
// closures, bookings, payments, refunds, scan events and accounts.
//
// Storage outcomes that callers must branch on are reported with the
// sentinel errors below rather than driver errors.  The race-sensitive
// guarantees (one booking per slot and date, one open order per booking,
// one in-flight refund per payment, single-use check-in) are enforced by
// unique keys and conditional updates in this package.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete cannot proceed because dependent
// records exist, such as deleting a slot that active bookings still use.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a natural unique key
// (slot start per game, closure tuple, user email).
var ErrDuplicate = errors.New("duplicate")

// ErrSlotTaken is returned when a booking would claim a (date, game, slot)
// already held by another non-cancelled booking.
var ErrSlotTaken = errors.New("slot already claimed")

// ErrDuplicateCode is returned when a generated booking code already exists.
var ErrDuplicateCode = errors.New("booking code exists")

// ErrOpenOrderExists is returned when a booking already has an unpaid order.
var ErrOpenOrderExists = errors.New("open order exists")

// ErrRefundPending is returned when a payment already has a PENDING refund.
var ErrRefundPending = errors.New("refund pending")

// ErrRefundExceeds is returned when a refund would push the refunded total
// above the payment amount.
var ErrRefundExceeds = errors.New("refund exceeds balance")

// ErrStateChanged is returned by conditional updates whose precondition no
// longer holds because another request changed the row first.
var ErrStateChanged = errors.New("state changed")

// isDuplicate reports whether err is a MySQL duplicate-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}
