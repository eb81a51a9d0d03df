package utils

import "fmt"

// Format12Hour renders an hour of the day (0..24) on a 12 hour clock,
// e.g. 0 -> "12:00 AM", 13 -> "1:00 PM".
func Format12Hour(h int) string {
	h = ((h % 24) + 24) % 24
	switch {
	case h == 0:
		return "12:00 AM"
	case h == 12:
		return "12:00 PM"
	case h < 12:
		return fmt.Sprintf("%d:00 AM", h)
	default:
		return fmt.Sprintf("%d:00 PM", h-12)
	}
}

// FormatTimeRange builds a slot label such as "6:00 PM - 7:00 PM".  An end
// hour of 24 is shown as midnight.
func FormatTimeRange(start, end int) string {
	return Format12Hour(start) + " - " + Format12Hour(end%24)
}
