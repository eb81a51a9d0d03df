package model

import "time"

// Booking statuses as stored in bookings.status.
const (
	BookingPaymentPending = "Payment Pending"
	BookingConfirmed      = "Confirmed"
	BookingCheckedIn      = "Checked In"
	BookingCancelled      = "Cancelled"
)

// DefaultGuestName is used when a booking is created without a name.
const DefaultGuestName = "Guest User"

// Booking records a reservation of one or more slots of a game on a date.
// The slot list is copied at creation time (see BookingItem), so later slot
// edits never change what a customer paid for or when they may enter.
//
// Fields:
//  ID          – primary key identifier.
//  Code        – human readable unique code (BK-1234).
//  Date        – calendar day of play, YYYY-MM-DD.
//  GameID      – game being booked.
//  Items       – ordered slot snapshot.
//  TotalPrice  – sum of item prices in whole rupees.
//  Status      – Payment Pending, Confirmed, Checked In or Cancelled.
//  UserID      – owning user when booked while signed in.
//  GuestName   – contact name, "Guest User" when not supplied.
//  GuestEmail  – contact email used for confirmations.
//  CheckedInAt – set iff Status is Checked In.
type Booking struct {
	ID          uint64        `json:"-"`            // bookings.id
	Code        string        `json:"id"`           // bookings.code
	Date        string        `json:"date"`         // bookings.play_date
	GameID      uint64        `json:"game_id"`      // bookings.game_id
	GameName    string        `json:"game_name"`    // joined from games.name
	Items       []BookingItem `json:"items"`        // booking_items rows
	TotalPrice  int64         `json:"total_price"`  // bookings.total_price
	Status      string        `json:"status"`       // bookings.status
	UserID      *uint64       `json:"user_id,omitempty"`
	GuestName   string        `json:"user"`         // bookings.guest_name
	GuestEmail  *string       `json:"guest_email,omitempty"`
	CheckedInAt *time.Time    `json:"checked_in_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// BookingItem is one booked slot, snapshotted from the slot definition.
type BookingItem struct {
	SlotID    uint64 `json:"slot_id"`
	Label     string `json:"time"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	Price     int64  `json:"price"`
}

// Contains reports whether minuteOfDay falls inside the booked window.
func (it BookingItem) Contains(minuteOfDay int) bool {
	return minuteOfDay >= it.StartHour*60 && minuteOfDay < it.EndHour*60
}

// SlotIDs returns the booked slot ids in booking order.
func (b Booking) SlotIDs() []uint64 {
	ids := make([]uint64, len(b.Items))
	for i, it := range b.Items {
		ids[i] = it.SlotID
	}
	return ids
}

// SlotLabels returns the display labels in booking order.
func (b Booking) SlotLabels() []string {
	out := make([]string, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.Label
	}
	return out
}

// BookingFilter narrows admin booking listings.  Empty fields are ignored.
type BookingFilter struct {
	Date   string
	Status string
	GameID uint64
}
