package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id stored by JWTAuth or
// OptionalJWT.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case uint64:
		return v, v != 0
	case float64:
		return uint64(v), v > 0
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		return id, err == nil && id != 0
	}
	return 0, false
}

// keyUser is the user part of rate limit keys, "anon" for guests.
func keyUser(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
