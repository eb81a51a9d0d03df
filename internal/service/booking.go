package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/metrics"
	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/repository"
	"github.com/iliyamo/turf-booking/internal/utils"
)

// BookingConfig carries the settings the booking service needs beyond its
// stores.
type BookingConfig struct {
	ScanSecret string         // HMAC key for ticket tokens
	ScanTTL    time.Duration  // ticket token lifetime
	Location   *time.Location // venue timezone
	Now        Clock          // defaults to time.Now
}

// BookingService allocates slots to bookings and runs the admin booking
// operations.  Double booking is prevented by the store's claim key, so no
// in-process locking is needed.
type BookingService struct {
	games    GameStore
	slots    SlotStore
	closures ClosureStore
	bookings BookingStore
	avail    *Availability
	cfg      BookingConfig
}

// NewBookingService wires the allocator.
func NewBookingService(games GameStore, slots SlotStore, closures ClosureStore, bookings BookingStore, cfg BookingConfig) *BookingService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BookingService{
		games:    games,
		slots:    slots,
		closures: closures,
		bookings: bookings,
		avail:    NewAvailability(slots, closures),
		cfg:      cfg,
	}
}

// NewBooking is a validated booking request.
type NewBooking struct {
	Date       string
	GameID     uint64
	SlotIDs    []uint64
	UserID     *uint64
	GuestName  string
	GuestEmail string
	// Status is Confirmed for direct bookings or Payment Pending for the
	// gateway flow.  Empty means Confirmed.
	Status string
}

// BookingView is a booking as returned to clients, with its ticket token
// when the booking can be scanned.
type BookingView struct {
	model.Booking
	ScanToken string `json:"scan_token,omitempty"`
}

// CreateBooking resolves the game, checks availability, snapshots the slot
// prices and labels and persists the booking together with its slot claims.
func (s *BookingService) CreateBooking(ctx context.Context, in NewBooking) (model.Booking, error) {
	log := logging.FromContext(ctx)
	if in.Status == "" {
		in.Status = model.BookingConfirmed
	}
	if in.Status != model.BookingConfirmed && in.Status != model.BookingPaymentPending {
		return model.Booking{}, fmt.Errorf("%w: status %q", ErrInvalidInput, in.Status)
	}
	game, err := s.games.GetByID(ctx, in.GameID)
	if err != nil {
		if isNotFound(err) {
			return model.Booking{}, ErrGameNotFound
		}
		return model.Booking{}, err
	}
	slots, err := s.avail.Check(ctx, in.Date, in.GameID, in.SlotIDs)
	if err != nil {
		s.reject(err)
		return model.Booking{}, err
	}

	b := model.Booking{
		Date:      in.Date,
		GameID:    game.ID,
		GameName:  game.Name,
		Status:    in.Status,
		UserID:    in.UserID,
		GuestName: strings.TrimSpace(in.GuestName),
	}
	if b.GuestName == "" {
		b.GuestName = model.DefaultGuestName
	}
	if email := strings.TrimSpace(in.GuestEmail); email != "" {
		b.GuestEmail = &email
	}
	for _, sl := range slots {
		b.Items = append(b.Items, model.BookingItem{
			SlotID: sl.ID, Label: sl.Label, StartHour: sl.StartHour, EndHour: sl.EndHour, Price: sl.Price,
		})
		b.TotalPrice += sl.Price
	}
	// A booking awaiting payment must have something to pay for.
	if b.Status == model.BookingPaymentPending && b.TotalPrice <= 0 {
		return model.Booking{}, ErrInvalidAmount
	}

	for attempt := 0; ; attempt++ {
		code, err := newBookingCode(ctx, s.bookings.CodeExists, s.cfg.Now())
		if err != nil {
			return model.Booking{}, err
		}
		b.Code = code
		err = s.bookings.Create(ctx, &b)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			s.reject(ErrSlotAlreadyBooked)
			return model.Booking{}, ErrSlotAlreadyBooked
		case errors.Is(err, repository.ErrDuplicateCode) && attempt < 3:
			log.WithField("code", code).Warn("booking code collided on insert, retrying")
			continue
		default:
			return model.Booking{}, err
		}
	}

	metrics.BookingsCreated.WithLabelValues(b.Status).Inc()
	log.WithFields(logrus.Fields{
		"booking_id": b.Code,
		"date":       b.Date,
		"game_id":    b.GameID,
		"status":     b.Status,
		"total":      b.TotalPrice,
	}).Info("booking created")
	return b, nil
}

func (s *BookingService) reject(err error) {
	reason := "other"
	switch {
	case errors.Is(err, ErrSlotInvalid):
		reason = "slot_invalid"
	case errors.Is(err, ErrClosureConflict):
		reason = "closure"
	case errors.Is(err, ErrSlotAlreadyBooked):
		reason = "already_booked"
	case errors.Is(err, ErrInvalidInput):
		reason = "invalid_input"
	}
	metrics.BookingRejections.WithLabelValues(reason).Inc()
}

// Get returns a booking by code.  Confirmed and checked-in bookings carry a
// freshly signed ticket token.
func (s *BookingService) Get(ctx context.Context, code string) (BookingView, error) {
	b, err := s.getBooking(ctx, code)
	if err != nil {
		return BookingView{}, err
	}
	v := BookingView{Booking: b}
	if b.Status == model.BookingConfirmed || b.Status == model.BookingCheckedIn {
		tok, err := utils.NewScanToken(s.cfg.ScanSecret, b.Code, s.cfg.ScanTTL)
		if err != nil {
			return BookingView{}, err
		}
		v.ScanToken = tok
	}
	return v, nil
}

func (s *BookingService) getBooking(ctx context.Context, code string) (model.Booking, error) {
	b, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

// List returns bookings matching f, newest play date first.
func (s *BookingService) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	if f.Date != "" {
		if err := validateDate(f.Date); err != nil {
			return nil, err
		}
	}
	if f.Status != "" && !validStatus(f.Status) {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, f.Status)
	}
	return s.bookings.List(ctx, f)
}

func validStatus(st string) bool {
	return lo.Contains([]string{
		model.BookingPaymentPending, model.BookingConfirmed, model.BookingCheckedIn, model.BookingCancelled,
	}, st)
}

// transitionsTo lists, per target status, the statuses an admin may move
// a booking from.  Cancelled never appears as a source.
var transitionsTo = map[string][]string{
	model.BookingConfirmed: {model.BookingPaymentPending},
	model.BookingCheckedIn: {model.BookingConfirmed},
	model.BookingCancelled: {model.BookingPaymentPending, model.BookingConfirmed, model.BookingCheckedIn},
}

// SetStatus applies an admin status change.  Setting the current status is
// a no-op.  Cancelling releases the slot claims; checking in stamps the
// check-in time.
func (s *BookingService) SetStatus(ctx context.Context, code, status string) (model.Booking, error) {
	if !validStatus(status) {
		return model.Booking{}, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	b, err := s.getBooking(ctx, code)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == status {
		return b, nil
	}
	if !lo.Contains(transitionsTo[status], b.Status) {
		return model.Booking{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, status)
	}
	now := s.cfg.Now()
	ok, err := s.bookings.Transition(ctx, code, []string{b.Status}, status, &now)
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: booking changed concurrently", ErrInvalidTransition)
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": code,
		"from":       b.Status,
		"to":         status,
	}).Info("booking status changed")
	return s.getBooking(ctx, code)
}

// CheckIn marks a confirmed booking as checked in without a ticket scan.
func (s *BookingService) CheckIn(ctx context.Context, code string) (model.Booking, error) {
	b, err := s.getBooking(ctx, code)
	if err != nil {
		return model.Booking{}, err
	}
	switch b.Status {
	case model.BookingCancelled:
		return model.Booking{}, fmt.Errorf("%w: booking is cancelled", ErrInvalidTransition)
	case model.BookingCheckedIn:
		return model.Booking{}, fmt.Errorf("%w: booking already checked in", ErrInvalidTransition)
	}
	now := s.cfg.Now()
	ok, err := s.bookings.Transition(ctx, code, []string{model.BookingConfirmed}, model.BookingCheckedIn, &now)
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}
	logging.FromContext(ctx).WithField("booking_id", code).Info("booking checked in by admin")
	return s.getBooking(ctx, code)
}

// Delete removes a booking, its items and its claims.
func (s *BookingService) Delete(ctx context.Context, code string) error {
	if err := s.bookings.Delete(ctx, code); err != nil {
		if isNotFound(err) {
			return ErrBookingNotFound
		}
		return err
	}
	logging.FromContext(ctx).WithField("booking_id", code).Info("booking deleted")
	return nil
}

// ScheduleSlot is an active slot annotated for one date.
type ScheduleSlot struct {
	model.Slot
	Booked bool `json:"booked"`
	Closed bool `json:"closed"`
}

// DaySchedule lists the active slots of a game for date, flagging those
// already claimed by a booking and those blocked by a closure.
func (s *BookingService) DaySchedule(ctx context.Context, date string, gameID uint64) ([]ScheduleSlot, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if _, err := s.games.GetByID(ctx, gameID); err != nil {
		if isNotFound(err) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	active := true
	slots, err := s.slots.List(ctx, gameID, &active)
	if err != nil {
		return nil, err
	}
	claimed, err := s.bookings.ClaimedSlotIDs(ctx, date, gameID)
	if err != nil {
		return nil, err
	}
	closures, err := s.closures.List(ctx, date)
	if err != nil {
		return nil, err
	}
	closed := closedHours(closures, slots)
	out := make([]ScheduleSlot, 0, len(slots))
	for _, sl := range slots {
		out = append(out, ScheduleSlot{Slot: sl, Booked: lo.Contains(claimed, sl.ID), Closed: closed[sl.ID]})
	}
	return out, nil
}

// Today returns the current venue date.
func (s *BookingService) Today() string { return s.cfg.Now().In(s.cfg.Location).Format(DateLayout) }
