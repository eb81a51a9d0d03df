// Package queue publishes and consumes booking events over RabbitMQ.
package queue

import "github.com/iliyamo/turf-booking/internal/notify"

// BookingConfirmedQueue is the durable queue confirmations are routed to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a payment confirms a booking.
// It carries everything the mail consumer needs so it never has to query
// the primary database.
type BookingConfirmedEvent struct {
	BookingCode  string   `json:"booking_id"`
	PaymentID    string   `json:"payment_id"`
	AmountRupees int64    `json:"amount"`
	Date         string   `json:"date"`
	GameName     string   `json:"game_name"`
	Slots        []string `json:"slots"`
	GuestName    string   `json:"guest_name"`
	GuestEmail   string   `json:"guest_email"`
	ConfirmedAt  string   `json:"confirmed_at"`
}

// EventFromConfirmation converts a notification into its wire form.
func EventFromConfirmation(m notify.BookingConfirmation) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingCode:  m.BookingCode,
		PaymentID:    m.PaymentID,
		AmountRupees: m.AmountRupees,
		Date:         m.Date,
		GameName:     m.GameName,
		Slots:        m.Slots,
		GuestName:    m.Name,
		GuestEmail:   m.Email,
		ConfirmedAt:  m.ConfirmedAt,
	}
}

// Confirmation converts the event back into a notification.
func (e BookingConfirmedEvent) Confirmation() notify.BookingConfirmation {
	return notify.BookingConfirmation{
		BookingCode:  e.BookingCode,
		PaymentID:    e.PaymentID,
		AmountRupees: e.AmountRupees,
		Date:         e.Date,
		GameName:     e.GameName,
		Slots:        e.Slots,
		Name:         e.GuestName,
		Email:        e.GuestEmail,
		ConfirmedAt:  e.ConfirmedAt,
	}
}
