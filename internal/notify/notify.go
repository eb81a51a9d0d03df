// Package notify delivers booking confirmations.  Delivery is best effort:
// callers log and discard the returned error.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/turf-booking/internal/logging"
)

// BookingConfirmation is the message sent once a payment confirms a booking.
type BookingConfirmation struct {
	BookingCode  string   `json:"booking_id"`
	PaymentID    string   `json:"payment_id"`
	AmountRupees int64    `json:"amount"`
	Date         string   `json:"date"`
	GameName     string   `json:"game_name"`
	Slots        []string `json:"slots"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	ConfirmedAt  string   `json:"confirmed_at"`
}

// Notifier sends a booking confirmation.
type Notifier interface {
	BookingConfirmed(ctx context.Context, msg BookingConfirmation) error
}

// LogNotifier only logs confirmations.  It is used when neither a broker
// nor SMTP is configured.
type LogNotifier struct{}

func (LogNotifier) BookingConfirmed(ctx context.Context, msg BookingConfirmation) error {
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": msg.BookingCode,
		"payment_id": msg.PaymentID,
		"amount":     msg.AmountRupees,
		"date":       msg.Date,
	}).Info("booking confirmed")
	return nil
}
