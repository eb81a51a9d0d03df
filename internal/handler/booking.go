package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/service"
)

// qrSize is the edge length in pixels of ticket QR images.
const qrSize = 256

// BookingHandler serves the customer booking endpoints.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
	if b == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b}
}

type guestReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// newBookingReq is the body of POST /v1/bookings and of create-order for a
// new booking.
type newBookingReq struct {
	Date    string    `json:"date"`
	GameID  uint64    `json:"gameId"`
	SlotIDs []uint64  `json:"slotIds"`
	Guest   *guestReq `json:"guest"`
}

func (r newBookingReq) toService(c echo.Context) service.NewBooking {
	nb := service.NewBooking{
		Date:    strings.TrimSpace(r.Date),
		GameID:  r.GameID,
		SlotIDs: r.SlotIDs,
		UserID:  userIDPtr(c),
	}
	if r.Guest != nil {
		nb.GuestName = r.Guest.Name
		nb.GuestEmail = r.Guest.Email
	}
	return nb
}

func (r newBookingReq) validate() string {
	switch {
	case r.Date == "":
		return "date is required"
	case r.GameID == 0:
		return "gameId is required"
	case len(r.SlotIDs) == 0:
		return "slotIds is required"
	}
	return ""
}

// Create handles POST /v1/bookings, a direct booking confirmed at once.
func (h *BookingHandler) Create(c echo.Context) error {
	var req newBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	nb := req.toService(c)
	nb.Status = model.BookingConfirmed
	b, err := h.Bookings.CreateBooking(c.Request().Context(), nb)
	if err != nil {
		return respondError(c, err)
	}
	v, err := h.Bookings.Get(c.Request().Context(), b.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// Get handles GET /v1/bookings/:code.
func (h *BookingHandler) Get(c echo.Context) error {
	v, err := h.Bookings.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// QR handles GET /v1/bookings/:code/qr and renders the ticket token as a
// PNG.  Bookings that cannot be scanned have no ticket.
func (h *BookingHandler) QR(c echo.Context) error {
	v, err := h.Bookings.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	if v.ScanToken == "" {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking has no ticket (status: " + v.Status + ")"})
	}
	png, err := qrcode.Encode(v.ScanToken, qrcode.Medium, qrSize)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}
