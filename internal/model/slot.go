package model

import "time"

// Slot is a recurring hour range for one game.  It is not tied to a date:
// the same slot is offered every day unless a closure blocks it.  EndHour
// is exclusive and may be 24 for a window ending at midnight.
//
// Fields:
//  ID        – primary key identifier.
//  GameID    – game the slot belongs to.
//  StartHour – first hour of the window (0..23), unique per game.
//  EndHour   – hour the window ends (1..24).
//  Label     – display label such as "6:00 PM - 7:00 PM".
//  Price     – price in whole rupees.
//  Active    – inactive slots are hidden and cannot be booked.
type Slot struct {
	ID        uint64    `json:"id" db:"id"`                 // slots.id
	GameID    uint64    `json:"game_id" db:"game_id"`       // slots.game_id
	StartHour int       `json:"start_hour" db:"start_hour"` // slots.start_hour
	EndHour   int       `json:"end_hour" db:"end_hour"`     // slots.end_hour
	Label     string    `json:"time" db:"label"`            // slots.label
	Price     int64     `json:"price" db:"price"`           // slots.price
	Active    bool      `json:"active" db:"active"`         // slots.active
	CreatedAt time.Time `json:"-" db:"created_at"`          // slots.created_at
}

