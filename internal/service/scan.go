package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/metrics"
	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/utils"
)

// ScanService validates ticket tokens at the gate and consumes them.
type ScanService struct {
	bookings BookingStore
	events   ScanEventStore
	secret   string
	loc      *time.Location
	now      Clock
}

// NewScanService returns a scanner.  loc is the venue timezone that
// defines "today" and the slot windows; now defaults to time.Now.
func NewScanService(bookings BookingStore, events ScanEventStore, secret string, loc *time.Location, now Clock) *ScanService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &ScanService{bookings: bookings, events: events, secret: secret, loc: loc, now: now}
}

// ClientMeta identifies the scanning device.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// ScanResult is the outcome of one scan.  Booking is set only for VALID.
type ScanResult struct {
	Status  string         `json:"status"`
	Booking *model.Booking `json:"booking,omitempty"`
}

// VerifyAndConsume checks a ticket token and, when every check passes,
// flips the booking from Confirmed to Checked In.  Checks run in a fixed
// order and the first failure decides the result.  Each call appends
// exactly one scan event.  The final transition is conditional, so of any
// number of concurrent scans of one ticket only one reports VALID.
func (s *ScanService) VerifyAndConsume(ctx context.Context, token string, adminID uint64, meta ClientMeta) (ScanResult, error) {
	now := s.now().In(s.loc)
	ev := &model.ScanEvent{AdminID: adminID, ScannedAt: now.UTC(), IP: meta.IP, UserAgent: meta.UserAgent}

	code, err := utils.ParseScanToken(s.secret, token)
	if code != "" {
		ev.BookingCode = &code
	}
	if err != nil {
		if errors.Is(err, utils.ErrScanTokenExpired) {
			return s.finish(ctx, ev, model.ScanExpired, nil)
		}
		return s.finish(ctx, ev, model.ScanInvalid, nil)
	}

	b, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return s.finish(ctx, ev, model.ScanInvalid, nil)
		}
		return ScanResult{}, err
	}
	id := b.ID
	ev.BookingID = &id

	switch {
	case b.Status == model.BookingCheckedIn:
		return s.finish(ctx, ev, model.ScanAlreadyUsed, nil)
	case b.Status != model.BookingConfirmed:
		return s.finish(ctx, ev, model.ScanInvalid, nil)
	case b.Date != now.Format(DateLayout):
		return s.finish(ctx, ev, model.ScanExpired, nil)
	case !withinAnyItem(b.Items, now):
		return s.finish(ctx, ev, model.ScanExpired, nil)
	}

	at := now.UTC()
	ok, err := s.bookings.Transition(ctx, code, []string{model.BookingConfirmed}, model.BookingCheckedIn, &at)
	if err != nil {
		return ScanResult{}, err
	}
	if !ok {
		return s.finish(ctx, ev, model.ScanAlreadyUsed, nil)
	}
	b.Status = model.BookingCheckedIn
	b.CheckedInAt = &at
	return s.finish(ctx, ev, model.ScanValid, &b)
}

// finish records the scan event.  A failed audit write is returned for
// rejected scans, which changed nothing and can be retried; after a
// successful check-in it is only logged.
func (s *ScanService) finish(ctx context.Context, ev *model.ScanEvent, result string, b *model.Booking) (ScanResult, error) {
	ev.Result = result
	metrics.Scans.WithLabelValues(result).Inc()
	log := logging.FromContext(ctx).WithFields(logrus.Fields{"result": result, "admin_id": ev.AdminID})
	if ev.BookingCode != nil {
		log = log.WithField("booking_id", *ev.BookingCode)
	}
	if err := s.events.Create(ctx, ev); err != nil {
		log.WithError(err).Error("failed to record scan event")
		if result != model.ScanValid {
			return ScanResult{}, err
		}
	}
	log.Info("ticket scanned")
	return ScanResult{Status: result, Booking: b}, nil
}

// withinAnyItem reports whether now falls inside one of the booked windows.
func withinAnyItem(items []model.BookingItem, now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	for _, it := range items {
		if it.Contains(minute) {
			return true
		}
	}
	return false
}
