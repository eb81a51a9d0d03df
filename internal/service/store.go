package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/repository"
)

// GameStore reads the game catalog.
type GameStore interface {
	GetByID(ctx context.Context, id uint64) (model.Game, error)
	List(ctx context.Context) ([]model.Game, error)
}

// SlotStore persists slot definitions.
type SlotStore interface {
	GetByID(ctx context.Context, id uint64) (model.Slot, error)
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Slot, error)
	List(ctx context.Context, gameID uint64, active *bool) ([]model.Slot, error)
	Create(ctx context.Context, s *model.Slot) error
	CreateMany(ctx context.Context, slots []model.Slot) ([]model.Slot, error)
	Update(ctx context.Context, id uint64, price *int64, active *bool) (model.Slot, error)
	Delete(ctx context.Context, id uint64) error
	DeleteByGame(ctx context.Context, gameID uint64) (int64, error)
}

// ClosureStore persists closures.
type ClosureStore interface {
	List(ctx context.Context, date string) ([]model.Closure, error)
	Create(ctx context.Context, c *model.Closure) error
	Delete(ctx context.Context, id uint64) error
}

// BookingStore persists bookings and enforces one claim per
// (date, game, slot) among non-cancelled bookings.
type BookingStore interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, b *model.Booking) error
	GetByCode(ctx context.Context, code string) (model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	Transition(ctx context.Context, code string, from []string, to string, at *time.Time) (bool, error)
	Delete(ctx context.Context, code string) error
	ClaimedSlotIDs(ctx context.Context, date string, gameID uint64) ([]uint64, error)
}

// PaymentStore persists gateway orders and refunds.
type PaymentStore interface {
	OpenOrder(ctx context.Context, bookingCode string) (model.Payment, error)
	Create(ctx context.Context, p *model.Payment) error
	GetByOrder(ctx context.Context, orderID, bookingCode string) (model.Payment, error)
	GetByGatewayID(ctx context.Context, gatewayPaymentID string) (model.Payment, error)
	MarkFailed(ctx context.Context, id uint64) error
	Confirm(ctx context.Context, p repository.ConfirmParams) (bool, error)
	PendingRefundExists(ctx context.Context, paymentID uint64) (bool, error)
	BeginRefund(ctx context.Context, paymentID uint64, amount int64) (model.Refund, error)
	CompleteRefund(ctx context.Context, rf model.Refund) (model.Payment, error)
	AbortRefund(ctx context.Context, refundID uint64) error
}

// ScanEventStore appends scan audit rows.
type ScanEventStore interface {
	Create(ctx context.Context, ev *model.ScanEvent) error
}

// Clock returns the current time.  Tests replace it to pin "now".
type Clock func() time.Time

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }
