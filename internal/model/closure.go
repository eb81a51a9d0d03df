package model

import "time"

// Closure types.
const (
	ClosureFull    = "full"
	ClosurePartial = "partial"
)

// Closure blocks bookings on a calendar date.  A full closure blocks the
// whole day; a partial closure blocks slots whose start hour falls in
// [StartHour, EndHour).  Closures are created and deleted, never edited.
type Closure struct {
	ID        uint64    `json:"id" db:"id"`
	Date      string    `json:"date" db:"date"` // YYYY-MM-DD
	Type      string    `json:"type" db:"type"`
	StartHour *int      `json:"start_hour,omitempty" db:"start_hour"`
	EndHour   *int      `json:"end_hour,omitempty" db:"end_hour"`
	Reason    string    `json:"reason" db:"reason"`
	Note      *string   `json:"note,omitempty" db:"note"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// Blocks reports whether the closure prevents booking a slot starting at
// startHour.  Missing partial bounds default to the whole day.
func (c Closure) Blocks(startHour int) bool {
	if c.Type == ClosureFull {
		return true
	}
	start, end := 0, 24
	if c.StartHour != nil {
		start = *c.StartHour
	}
	if c.EndHour != nil {
		end = *c.EndHour
	}
	return startHour >= start && startHour < end
}
