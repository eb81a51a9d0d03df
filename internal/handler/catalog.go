package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/service"
)

// GameLister lists the bookable games.
type GameLister interface {
	List(ctx context.Context) ([]model.Game, error)
}

// CatalogHandler serves the public, cacheable read endpoints.
type CatalogHandler struct {
	Games    GameLister
	Bookings *service.BookingService
	Closures *service.ClosureService
}

func NewCatalogHandler(games GameLister, bookings *service.BookingService, closures *service.ClosureService) *CatalogHandler {
	return &CatalogHandler{Games: games, Bookings: bookings, Closures: closures}
}

// ListGames handles GET /v1/catalog/games.
func (h *CatalogHandler) ListGames(c echo.Context) error {
	games, err := h.Games.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"games": games})
}

// ListSlots handles GET /v1/catalog/slots?gameId=&date=.  date defaults to the
// current venue day.
func (h *CatalogHandler) ListSlots(c echo.Context) error {
	gameID, ok := queryID(c, "gameId")
	if !ok || gameID == 0 {
		return badRequest(c, "gameId is required")
	}
	date := c.QueryParam("date")
	if date == "" {
		date = h.Bookings.Today()
	}
	slots, err := h.Bookings.DaySchedule(c.Request().Context(), date, gameID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "gameId": gameID, "slots": slots})
}

// ListClosures handles GET /v1/catalog/closures?date=.
func (h *CatalogHandler) ListClosures(c echo.Context) error {
	closures, err := h.Closures.List(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"closures": closures})
}
