package handler // handler defines the HTTP handlers behind the /v1 routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/service"
)

// statusFor maps service error kinds to HTTP status codes.  The first
// match wins; anything unlisted is a 500.
var statusFor = []struct {
	err    error
	status int
}{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrSlotInvalid, http.StatusBadRequest},
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrInvalidSignature, http.StatusBadRequest},
	{service.ErrOrderMismatch, http.StatusBadRequest},
	{service.ErrPaymentNotVerified, http.StatusBadRequest},
	{service.ErrRefundNotAllowed, http.StatusBadRequest},
	{service.ErrInvalidRefundAmount, http.StatusBadRequest},
	{service.ErrRefundExceedsBalance, http.StatusBadRequest},

	{service.ErrGameNotFound, http.StatusNotFound},
	{service.ErrBookingNotFound, http.StatusNotFound},
	{service.ErrPaymentOrderNotFound, http.StatusNotFound},
	{service.ErrPaymentNotFound, http.StatusNotFound},
	{service.ErrSlotNotFound, http.StatusNotFound},
	{service.ErrClosureNotFound, http.StatusNotFound},

	{service.ErrSlotAlreadyBooked, http.StatusConflict},
	{service.ErrClosureConflict, http.StatusConflict},
	{service.ErrBookingNotPending, http.StatusConflict},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrPaymentNotCaptured, http.StatusConflict},
	{service.ErrAmountMismatch, http.StatusConflict},
	{service.ErrPaymentAlreadyProcessed, http.StatusConflict},
	{service.ErrRefundInProgress, http.StatusConflict},
	{service.ErrAlreadyFullyRefunded, http.StatusConflict},
	{service.ErrSlotInUse, http.StatusConflict},
	{service.ErrSlotExists, http.StatusConflict},
	{service.ErrNoSlotsCreated, http.StatusConflict},
	{service.ErrClosureExists, http.StatusConflict},

	{service.ErrGatewayUnavailable, http.StatusBadGateway},
	{service.ErrPaymentsDisabled, http.StatusServiceUnavailable},
}

// respondError writes err as {"error": "..."}.  Unknown errors are logged
// and reported without detail.
func respondError(c echo.Context, err error) error {
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": err.Error()})
		}
	}
	logging.FromContext(c.Request().Context()).WithError(err).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// getUserID extracts the user_id set by the JWT middleware.
func getUserID(c echo.Context) (uint64, bool) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, t != 0
	case float64:
		return uint64(t), t > 0
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, n != 0
		}
	}
	return 0, false
}

// userIDPtr returns the caller's id for linking a booking, nil for guests.
func userIDPtr(c echo.Context) *uint64 {
	if id, ok := getUserID(c); ok {
		return &id
	}
	return nil
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// queryID parses an optional numeric query parameter; absent means zero.
func queryID(c echo.Context, name string) (uint64, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
