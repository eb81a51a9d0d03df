package model

import "time"

// Scan results recorded for every check-in attempt.
const (
	ScanValid       = "VALID"
	ScanInvalid     = "INVALID"
	ScanExpired     = "EXPIRED"
	ScanAlreadyUsed = "ALREADY_USED"
)

// ScanEvent is an append-only audit row written for each scan attempt,
// including malformed tokens.  BookingID is set only when the token
// resolved to an existing booking; BookingCode holds whatever code could be
// read from the token.
type ScanEvent struct {
	ID          uint64    `json:"id"`                   // scan_events.id
	BookingID   *uint64   `json:"-"`                    // scan_events.booking_id (nullable)
	BookingCode *string   `json:"booking_id,omitempty"` // scan_events.booking_code (nullable)
	AdminID     uint64    `json:"admin_id"`             // scan_events.admin_id
	Result      string    `json:"result"`               // scan_events.result
	ScannedAt   time.Time `json:"scanned_at"`           // scan_events.scanned_at
	IP          string    `json:"ip,omitempty"`         // scan_events.ip
	UserAgent   string    `json:"user_agent,omitempty"` // scan_events.user_agent
}
