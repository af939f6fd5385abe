package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/service"
)

// ReservationHandler exposes the booking engine to authenticated persons.
// All methods assume JWTAuth already ran; the acting person always comes
// from the token, never from the body.
type ReservationHandler struct {
	engine BookingEngine
	loc    *time.Location
}

// NewReservationHandler builds the handler.  loc is the location request
// dates are interpreted in.
func NewReservationHandler(engine BookingEngine, loc *time.Location) *ReservationHandler {
	if engine == nil {
		panic("nil engine passed to NewReservationHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationHandler{engine: engine, loc: loc}
}

type createReservationRequest struct {
	RoomID          uint64         `json:"room_id"`
	Window          *windowRequest `json:"window"`
	MemberIDs       []uint64       `json:"member_ids"`
	InstitutionName string         `json:"institution_name"`
	AttachmentRef   string         `json:"attachment_ref"`
}

// Create handles POST /v1/reservations.  The caller becomes the leader (or
// the submitter of an institutional reservation).
func (h *ReservationHandler) Create(c echo.Context) error {
	personID, ok := middleware.PersonID(c)
	if !ok {
		return unauthorized(c)
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room_id is required"})
	}
	params := service.CreateReservationParams{
		RoomID:          body.RoomID,
		LeaderID:        personID,
		MemberIDs:       body.MemberIDs,
		InstitutionName: body.InstitutionName,
		AttachmentRef:   body.AttachmentRef,
	}
	if body.Window != nil {
		w, err := body.Window.parse(h.loc)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		params.Window = &w
	}
	b, err := h.engine.CreateReservation(c.Request().Context(), params)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, newBookingResponse(b))
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	b, err := h.engine.GetBooking(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	resp := newBookingResponse(b)
	if arrival, err := h.engine.ArrivalState(ctx, id); err == nil {
		resp.Arrival = string(arrival)
	}
	return c.JSON(http.StatusOK, resp)
}

type rescheduleRequest struct {
	windowRequest
	Reason string `json:"reason"`
}

// Reschedule handles POST /v1/reservations/:id/reschedule.
func (h *ReservationHandler) Reschedule(c echo.Context) error {
	personID, ok := middleware.PersonID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body rescheduleRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	w, err := body.parse(h.loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	s, err := h.engine.Reschedule(c.Request().Context(), service.RescheduleParams{
		ReservationID: id,
		ActorID:       personID,
		Window:        w,
		Reason:        body.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newScheduleResponse(*s))
}

// AssignWindow handles POST /v1/reservations/:id/window.
func (h *ReservationHandler) AssignWindow(c echo.Context) error {
	personID, ok := middleware.PersonID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body windowRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	w, err := body.parse(h.loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	s, err := h.engine.AssignWindow(c.Request().Context(), id, personID, w)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, newScheduleResponse(*s))
}

type addMembersRequest struct {
	MemberIDs []uint64 `json:"member_ids"`
}

// AddMembers handles POST /v1/reservations/:id/members.  Only the leader
// may grow the roster.
func (h *ReservationHandler) AddMembers(c echo.Context) error {
	personID, ok := middleware.PersonID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body addMembersRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.MemberIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "member_ids is required"})
	}
	roster, err := h.engine.AddMembers(c.Request().Context(), id, personID, body.MemberIDs)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]participantResponse, 0, len(roster))
	for _, p := range roster {
		out = append(out, newParticipantResponse(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"participants": out})
}

// CheckIn handles POST /v1/reservations/:id/check-in for the caller.
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	personID, ok := middleware.PersonID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	p, err := h.engine.CheckIn(c.Request().Context(), id, personID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newParticipantResponse(*p))
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	personID, ok := middleware.PersonID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.engine.Cancel(c.Request().Context(), id, personID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// History handles GET /v1/reservations/:id/schedules.
func (h *ReservationHandler) History(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	rows, err := h.engine.History(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]scheduleResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, newScheduleResponse(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": out})
}

// Availability handles GET /v1/rooms/:id/availability?date=&start=&end=
// with an optional exclude_reservation_id for reschedule previews.
func (h *ReservationHandler) Availability(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	req := windowRequest{Date: c.QueryParam("date"), Start: c.QueryParam("start"), End: c.QueryParam("end")}
	w, err := req.parse(h.loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var exclude uint64
	if raw := c.QueryParam("exclude_reservation_id"); raw != "" {
		if exclude, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid exclude_reservation_id"})
		}
	}
	a, err := h.engine.CheckAvailability(c.Request().Context(), roomID, w, exclude)
	if err != nil {
		return writeError(c, err)
	}
	resp := echo.Map{"available": a.Available, "window": newWindowResponse(w)}
	if a.Conflict != nil {
		resp["conflict"] = echo.Map{
			"reservation_id": a.Conflict.ReservationID,
			"window":         newWindowResponse(a.Conflict.Window),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Restriction handles GET /v1/me/restriction so clients can warn a person
// before they try to book.
func (h *ReservationHandler) Restriction(c echo.Context) error {
	personID, ok := middleware.PersonID(c)
	if !ok {
		return unauthorized(c)
	}
	r, err := h.engine.ActiveRestriction(c.Request().Context(), personID)
	if err != nil {
		return writeError(c, err)
	}
	if r == nil {
		return c.JSON(http.StatusOK, echo.Map{"restricted": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"restricted":       true,
		"penalty":          r.Penalty,
		"severity":         r.Severity,
		"reason":           r.Reason,
		"reservation_code": r.ReservationCode,
		"until":            r.Until.UTC().Format(time.RFC3339),
	})
}
