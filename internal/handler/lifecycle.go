package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// TriggerTokenHeader carries the shared secret of the internal scan trigger.
const TriggerTokenHeader = "X-Internal-Token"

// LifecycleHandler lets an external scheduler (cron, a peer service) drive
// the lifecycle scan.
type LifecycleHandler struct {
	engine BookingEngine
	token  string
}

// NewLifecycleHandler builds the handler.  An empty token disables the
// shared-secret endpoint.
func NewLifecycleHandler(engine BookingEngine, token string) *LifecycleHandler {
	return &LifecycleHandler{engine: engine, token: token}
}

// TriggerWithToken handles POST /internal/lifecycle/scan.
func (h *LifecycleHandler) TriggerWithToken(c echo.Context) error {
	got := c.Request().Header.Get(TriggerTokenHeader)
	if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid trigger token"})
	}
	return h.Trigger(c)
}

// Trigger runs one scan and returns the transition counts.  Behind JWT it
// is mounted at POST /v1/admin/lifecycle/scan.
func (h *LifecycleHandler) Trigger(c echo.Context) error {
	res, err := h.engine.RunLifecycle(c.Request().Context())
	body := echo.Map{
		"completed": res.Completed,
		"forfeited": res.Forfeited,
		"skipped":   res.Skipped,
	}
	if err != nil {
		c.Logger().Errorf("lifecycle scan: %v", err)
		body["error"] = "scan finished with errors"
		return c.JSON(http.StatusInternalServerError, body)
	}
	return c.JSON(http.StatusOK, body)
}
