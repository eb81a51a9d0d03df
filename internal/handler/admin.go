package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/service"
)

// ScanHistory lists the scan audit trail of a booking.
type ScanHistory interface {
	ListByBooking(ctx context.Context, code string) ([]model.ScanEvent, error)
}

// AdminHandler serves the /v1/admin routes.  Every route sits behind
// JWTAuth and RequireRole(ADMIN).
type AdminHandler struct {
	Bookings *service.BookingService
	Slots    *service.SlotService
	Closures *service.ClosureService
	Scans    *service.ScanService
	History  ScanHistory
}

func NewAdminHandler(b *service.BookingService, s *service.SlotService, cl *service.ClosureService, sc *service.ScanService, hist ScanHistory) *AdminHandler {
	if b == nil || s == nil || cl == nil || sc == nil || hist == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Bookings: b, Slots: s, Closures: cl, Scans: sc, History: hist}
}

// ----- bookings -----

// ListBookings handles GET /v1/admin/bookings?date=&status=&gameId=.
func (h *AdminHandler) ListBookings(c echo.Context) error {
	gameID, ok := queryID(c, "gameId")
	if !ok {
		return badRequest(c, "invalid gameId")
	}
	list, err := h.Bookings.List(c.Request().Context(), model.BookingFilter{
		Date:   c.QueryParam("date"),
		Status: c.QueryParam("status"),
		GameID: gameID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// SetBookingStatus handles PATCH /v1/admin/bookings/:code/status.
func (h *AdminHandler) SetBookingStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Status) == "" {
		return badRequest(c, "status is required")
	}
	b, err := h.Bookings.SetStatus(c.Request().Context(), c.Param("code"), strings.TrimSpace(body.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CheckIn handles POST /v1/admin/bookings/:code/checkin.
func (h *AdminHandler) CheckIn(c echo.Context) error {
	b, err := h.Bookings.CheckIn(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// DeleteBooking handles DELETE /v1/admin/bookings/:code.
func (h *AdminHandler) DeleteBooking(c echo.Context) error {
	if err := h.Bookings.Delete(c.Request().Context(), c.Param("code")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// BookingScans handles GET /v1/admin/bookings/:code/scans.
func (h *AdminHandler) BookingScans(c echo.Context) error {
	events, err := h.History.ListByBooking(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"scans": events})
}

// ----- slots -----

// ListSlots handles GET /v1/admin/slots?gameId=, including inactive slots.
func (h *AdminHandler) ListSlots(c echo.Context) error {
	gameID, ok := queryID(c, "gameId")
	if !ok {
		return badRequest(c, "invalid gameId")
	}
	slots, err := h.Slots.List(c.Request().Context(), gameID, nil)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

type slotReq struct {
	GameID    uint64 `json:"gameId"`
	StartHour *int   `json:"startHour"`
	EndHour   *int   `json:"endHour"`
	Price     *int64 `json:"price"`
	Active    *bool  `json:"active"`
}

// CreateSlot handles POST /v1/admin/slots.
func (h *AdminHandler) CreateSlot(c echo.Context) error {
	var req slotReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.GameID == 0 || req.StartHour == nil || req.EndHour == nil || req.Price == nil {
		return badRequest(c, "gameId, startHour, endHour and price are required")
	}
	sl, err := h.Slots.Create(c.Request().Context(), service.SlotInput{
		GameID:    req.GameID,
		StartHour: *req.StartHour,
		EndHour:   *req.EndHour,
		Price:     *req.Price,
		Active:    req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sl)
}

// UpdateSlot handles PATCH /v1/admin/slots/:id.
func (h *AdminHandler) UpdateSlot(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	var req slotReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Price == nil && req.Active == nil {
		return badRequest(c, "price or active is required")
	}
	sl, err := h.Slots.Update(c.Request().Context(), id, req.Price, req.Active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sl)
}

// DeleteSlot handles DELETE /v1/admin/slots/:id.
func (h *AdminHandler) DeleteSlot(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	if err := h.Slots.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveAllSlots handles DELETE /v1/admin/slots?gameId=.
func (h *AdminHandler) RemoveAllSlots(c echo.Context) error {
	gameID, ok := queryID(c, "gameId")
	if !ok || gameID == 0 {
		return badRequest(c, "gameId is required")
	}
	n, err := h.Slots.RemoveAll(c.Request().Context(), gameID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

type generateReq struct {
	GameID          uint64 `json:"gameId"`
	OpenHour        int    `json:"openHour"`
	CloseHour       int    `json:"closeHour"`
	DurationMins    int    `json:"durationMins"`
	DayPrice        int64  `json:"dayPrice"`
	PeakPrice       int64  `json:"peakPrice"`
	PeakStartHour   *int   `json:"peakStartHour"`
	ReplaceExisting bool   `json:"replaceExisting"`
}

// GenerateSlots handles POST /v1/admin/slots/generate.
func (h *AdminHandler) GenerateSlots(c echo.Context) error {
	var req generateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.GameID == 0 {
		return badRequest(c, "gameId is required")
	}
	created, err := h.Slots.Generate(c.Request().Context(), service.GenerateInput(req))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": len(created), "slots": created})
}

// ----- closures -----

// ListClosures handles GET /v1/admin/closures?date=.
func (h *AdminHandler) ListClosures(c echo.Context) error {
	list, err := h.Closures.List(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"closures": list})
}

type closureReq struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	StartHour *int   `json:"startHour"`
	EndHour   *int   `json:"endHour"`
	Reason    string `json:"reason"`
	Note      string `json:"note"`
}

// CreateClosure handles POST /v1/admin/closures.
func (h *AdminHandler) CreateClosure(c echo.Context) error {
	var req closureReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cl, err := h.Closures.Create(c.Request().Context(), service.ClosureInput(req))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, cl)
}

// DeleteClosure handles DELETE /v1/admin/closures/:id.
func (h *AdminHandler) DeleteClosure(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid closure id")
	}
	if err := h.Closures.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- scans -----

// VerifyScan handles POST /v1/admin/scans/verify.  Rejected tickets are
// still a 200: the result field carries the outcome.
func (h *AdminHandler) VerifyScan(c echo.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	adminID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.Scans.VerifyAndConsume(c.Request().Context(), strings.TrimSpace(body.Token), adminID, service.ClientMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
