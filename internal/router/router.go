// Package router registers the HTTP routes and their middleware chains.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/iliyamo/turf-booking/internal/config"
	"github.com/iliyamo/turf-booking/internal/handler"
	"github.com/iliyamo/turf-booking/internal/middleware"
	"github.com/iliyamo/turf-booking/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth     *handler.AuthHandler
	Catalog  *handler.CatalogHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Admin    *handler.AdminHandler
	DB       handler.Pinger
}

// Options carry the cross-cutting settings applied to route groups.
type Options struct {
	JWTSecret        string
	CORSOrigins      []string
	APIRateLimit     config.RateLimitConfig
	PaymentRateLimit config.RateLimitConfig
	Cache            config.CacheConfig
	Redis            *redis.Client
}

// New builds the Echo instance with every route registered.
func New(h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	c := cors.New(cors.Options{
		AllowedOrigins:   opt.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", echo.HeaderXRequestID},
		ExposedHeaders:   []string{echo.HeaderXRequestID, "Retry-After"},
		AllowCredentials: true,
	})
	e.Pre(echo.WrapMiddleware(c.Handler))
	e.Use(middleware.RequestLogger())

	e.GET("/healthz", handler.Health(h.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1", middleware.NewTokenBucket(opt.APIRateLimit, opt.Redis))
	registerAuth(v1, h.Auth, opt.JWTSecret)
	registerPublic(v1, h, opt)
	registerAdmin(v1, h, opt)
	return e
}

func registerAuth(v1 *echo.Group, a *handler.AuthHandler, secret string) {
	g := v1.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	v1.GET("/me", a.Me, middleware.JWTAuth(secret))
}

func registerPublic(v1 *echo.Group, h Handlers, opt Options) {
	// Slot and closure listings reflect bookings and admin edits as they
	// happen, so only the game list is served from the cache.
	catalog := v1.Group("/catalog")
	catalog.GET("/games", h.Catalog.ListGames, middleware.NewRedisCache(opt.Cache, opt.Redis))
	catalog.GET("/slots", h.Catalog.ListSlots)
	catalog.GET("/closures", h.Catalog.ListClosures)

	optional := middleware.OptionalJWT(opt.JWTSecret)
	v1.POST("/bookings", h.Bookings.Create, optional)
	v1.GET("/bookings/:code", h.Bookings.Get)
	v1.GET("/bookings/:code/qr", h.Bookings.QR)

	pay := v1.Group("/payments", optional, middleware.NewTokenBucket(opt.PaymentRateLimit, opt.Redis))
	pay.POST("/create-order", h.Payments.CreateOrder)
	pay.POST("/verify", h.Payments.Verify)
}

func registerAdmin(v1 *echo.Group, h Handlers, opt Options) {
	g := v1.Group("/admin", middleware.JWTAuth(opt.JWTSecret), middleware.RequireRole(model.RoleAdmin))

	g.GET("/bookings", h.Admin.ListBookings)
	g.PATCH("/bookings/:code/status", h.Admin.SetBookingStatus)
	g.POST("/bookings/:code/checkin", h.Admin.CheckIn)
	g.DELETE("/bookings/:code", h.Admin.DeleteBooking)
	g.GET("/bookings/:code/scans", h.Admin.BookingScans)

	g.GET("/slots", h.Admin.ListSlots)
	g.POST("/slots", h.Admin.CreateSlot)
	g.POST("/slots/generate", h.Admin.GenerateSlots)
	g.PATCH("/slots/:id", h.Admin.UpdateSlot)
	g.DELETE("/slots/:id", h.Admin.DeleteSlot)
	g.DELETE("/slots", h.Admin.RemoveAllSlots)

	g.GET("/closures", h.Admin.ListClosures)
	g.POST("/closures", h.Admin.CreateClosure)
	g.DELETE("/closures/:id", h.Admin.DeleteClosure)

	g.POST("/scans/verify", h.Admin.VerifyScan)
	g.POST("/payments/refund", h.Payments.Refund)
}
