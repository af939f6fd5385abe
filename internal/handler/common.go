package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/service"
)

// BookingEngine is the part of the booking engine the HTTP layer drives.
type BookingEngine interface {
	CreateReservation(ctx context.Context, p service.CreateReservationParams) (*service.Booking, error)
	GetBooking(ctx context.Context, reservationID uint64) (*service.Booking, error)
	Reschedule(ctx context.Context, p service.RescheduleParams) (*model.Schedule, error)
	AssignWindow(ctx context.Context, reservationID, actorID uint64, w model.Window) (*model.Schedule, error)
	AddMembers(ctx context.Context, reservationID, actorID uint64, personIDs []uint64) ([]model.Participant, error)
	CheckIn(ctx context.Context, reservationID, personID uint64) (*model.Participant, error)
	Cancel(ctx context.Context, reservationID, actorID uint64) error
	History(ctx context.Context, reservationID uint64) ([]model.Schedule, error)
	ArrivalState(ctx context.Context, reservationID uint64) (service.ArrivalState, error)
	CheckAvailability(ctx context.Context, roomID uint64, w model.Window, exclude uint64) (service.Availability, error)
	ActiveRestriction(ctx context.Context, personID uint64) (*service.Restriction, error)
	RunLifecycle(ctx context.Context) (service.ScanResult, error)
}

// windowRequest is the JSON shape of a time window.
type windowRequest struct {
	Date  string `json:"date"`  // YYYY-MM-DD
	Start string `json:"start"` // HH:MM or HH:MM:SS
	End   string `json:"end"`
}

var errBadWindow = errors.New("window requires date (YYYY-MM-DD), start and end (HH:MM)")

func (w windowRequest) parse(loc *time.Location) (model.Window, error) {
	if strings.TrimSpace(w.Date) == "" || strings.TrimSpace(w.Start) == "" || strings.TrimSpace(w.End) == "" {
		return model.Window{}, errBadWindow
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(w.Date), loc)
	if err != nil {
		return model.Window{}, errBadWindow
	}
	start, err := model.ParseTimeOfDay(w.Start)
	if err != nil {
		return model.Window{}, errBadWindow
	}
	end, err := model.ParseTimeOfDay(w.End)
	if err != nil {
		return model.Window{}, errBadWindow
	}
	return model.NewWindow(date, start, end), nil
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// writeError maps engine errors to HTTP responses.  Policy and conflict
// errors carry their payload so clients can show a precise message.
func writeError(c echo.Context, err error) error {
	body := echo.Map{"error": err.Error(), "kind": service.ErrorKind(err)}

	var (
		restriction *service.RestrictionError
		tooLate     *service.TooLateError
		conflict    *service.ConflictError
		elsewhere   *service.ActiveElsewhereError
	)
	switch {
	case errors.As(err, &restriction):
		body["penalty"] = restriction.Restriction.Penalty
		body["severity"] = restriction.Restriction.Severity
		body["reason"] = restriction.Restriction.Reason
		body["until"] = restriction.Restriction.Until.UTC().Format(time.RFC3339)
	case errors.As(err, &tooLate):
		body["cutoff"] = tooLate.Cutoff.Format(time.RFC3339)
	case errors.As(err, &conflict):
		body["conflicting_reservation_id"] = conflict.ReservationID
		body["conflicting_window"] = newWindowResponse(conflict.Window)
	case errors.As(err, &elsewhere):
		body["person_id"] = elsewhere.PersonID
		body["active_reservation_id"] = elsewhere.ReservationID
	}

	switch service.ErrorKind(err) {
	case "validation":
		if errors.Is(err, service.ErrCapacityOutOfRange) {
			return c.JSON(http.StatusUnprocessableEntity, body)
		}
		return c.JSON(http.StatusBadRequest, body)
	case "conflict", "state":
		return c.JSON(http.StatusConflict, body)
	case "policy":
		if errors.Is(err, service.ErrBlocked) {
			return c.JSON(http.StatusForbidden, body)
		}
		return c.JSON(http.StatusConflict, body)
	case "forbidden":
		return c.JSON(http.StatusForbidden, body)
	case "not_found":
		return c.JSON(http.StatusNotFound, body)
	}
	c.Logger().Errorf("booking engine error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

type windowResponse struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func newWindowResponse(w model.Window) windowResponse {
	return windowResponse{Date: w.Date.Format("2006-01-02"), Start: w.Start.String(), End: w.End.String()}
}

type scheduleResponse struct {
	ID               uint64         `json:"id"`
	Window           windowResponse `json:"window"`
	VersionStatus    string         `json:"version_status"`
	RescheduleReason *string        `json:"reschedule_reason,omitempty"`
	CreatedAt        string         `json:"created_at"`
}

func newScheduleResponse(s model.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:               s.ID,
		Window:           newWindowResponse(s.Window),
		VersionStatus:    string(s.VersionStatus),
		RescheduleReason: s.RescheduleReason,
		CreatedAt:        s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type participantResponse struct {
	PersonID    uint64  `json:"person_id"`
	IsLeader    bool    `json:"is_leader"`
	CheckedIn   bool    `json:"checked_in"`
	CheckedInAt *string `json:"checked_in_at,omitempty"`
}

func newParticipantResponse(p model.Participant) participantResponse {
	out := participantResponse{PersonID: p.PersonID, IsLeader: p.IsLeader, CheckedIn: p.CheckedIn}
	if p.CheckedInAt != nil {
		s := p.CheckedInAt.UTC().Format(time.RFC3339)
		out.CheckedInAt = &s
	}
	return out
}

type bookingResponse struct {
	ID              uint64                `json:"id"`
	Code            string                `json:"code"`
	RoomID          uint64                `json:"room_id"`
	BookedBy        uint64                `json:"booked_by"`
	Status          string                `json:"status"`
	DurationMinutes int                   `json:"duration_minutes"`
	InstitutionName *string               `json:"institution_name,omitempty"`
	AttachmentRef   *string               `json:"attachment_ref,omitempty"`
	Schedule        *scheduleResponse     `json:"schedule"`
	Participants    []participantResponse `json:"participants"`
	Arrival         string                `json:"arrival,omitempty"`
	CreatedAt       string                `json:"created_at"`
}

func newBookingResponse(b *service.Booking) bookingResponse {
	r := b.Reservation
	out := bookingResponse{
		ID:              r.ID,
		Code:            r.Code,
		RoomID:          r.RoomID,
		BookedBy:        r.BookedBy,
		Status:          string(r.Status),
		DurationMinutes: r.DurationMinutes,
		InstitutionName: r.InstitutionName,
		AttachmentRef:   r.AttachmentRef,
		Participants:    make([]participantResponse, 0, len(b.Participants)),
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.Schedule != nil {
		s := newScheduleResponse(*b.Schedule)
		out.Schedule = &s
	}
	for _, p := range b.Participants {
		out.Participants = append(out.Participants, newParticipantResponse(p))
	}
	return out
}
