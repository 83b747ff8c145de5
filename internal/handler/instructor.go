package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rangefront/course-enrollment/internal/repository"
)

// InstructorHandler serves roster and waitlist views for instructors.
// Access is limited to offerings the instructor actually teaches.
type InstructorHandler struct {
	Offerings    *repository.OfferingRepo
	Reservations *repository.ReservationRepo
	Waitlist     *repository.WaitlistRepo
}

func NewInstructorHandler(off *repository.OfferingRepo, res *repository.ReservationRepo, wl *repository.WaitlistRepo) *InstructorHandler {
	return &InstructorHandler{Offerings: off, Reservations: res, Waitlist: wl}
}

// Roster lists confirmed and pending enrollments for one offering.
func (h *InstructorHandler) Roster(c echo.Context) error {
	offeringID, ctx, cancel, ok := h.teaches(c)
	if !ok {
		return nil
	}
	defer cancel()

	entries, err := h.Reservations.ListRoster(ctx, offeringID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"roster": entries})
}

// Waitlisted lists waitlist entries for one offering, oldest first.
func (h *InstructorHandler) Waitlisted(c echo.Context) error {
	offeringID, ctx, cancel, ok := h.teaches(c)
	if !ok {
		return nil
	}
	defer cancel()

	entries, err := h.Waitlist.ListByOffering(ctx, offeringID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"waitlist": entries})
}

// teaches parses :id and verifies the caller is assigned to the
// offering.  When ok is false the response has already been written.
func (h *InstructorHandler) teaches(c echo.Context) (uint64, context.Context, context.CancelFunc, bool) {
	uid, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, nil, nil, false
	}
	offeringID := pathID(c, "id")
	if offeringID == 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		return 0, nil, nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)

	assigned, err := h.Offerings.InstructorTeaches(ctx, offeringID, uid)
	if err != nil {
		cancel()
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		return 0, nil, nil, false
	}
	if !assigned {
		cancel()
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "not assigned to this offering"})
		return 0, nil, nil, false
	}
	return offeringID, ctx, cancel, true
}
