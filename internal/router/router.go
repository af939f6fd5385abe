package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterReservations registers the booking API under /v1.  Every route
// requires a valid identity token; extra middleware (rate limiting, the
// lifecycle trigger) is applied after authentication so it can key on the
// person.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(extra...)

	g.POST("/reservations", h.Create)
	g.GET("/reservations/:id", h.Get)
	g.POST("/reservations/:id/reschedule", h.Reschedule)
	g.POST("/reservations/:id/window", h.AssignWindow)
	g.POST("/reservations/:id/members", h.AddMembers)
	g.POST("/reservations/:id/check-in", h.CheckIn)
	g.POST("/reservations/:id/cancel", h.Cancel)
	g.GET("/reservations/:id/schedules", h.History)
	g.GET("/rooms/:id/availability", h.Availability)
	g.GET("/me/restriction", h.Restriction)
}

// RegisterLifecycle exposes the scan trigger twice: to schedulers holding
// the shared secret, and to authenticated administrators.
func RegisterLifecycle(e *echo.Echo, h *handler.LifecycleHandler, jwtSecret string) {
	e.POST("/internal/lifecycle/scan", h.TriggerWithToken)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.POST("/lifecycle/scan", h.Trigger)
}
