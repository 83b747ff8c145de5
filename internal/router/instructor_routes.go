package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rangefront/course-enrollment/internal/handler"
	"github.com/rangefront/course-enrollment/internal/middleware"
)

// RegisterInstructor registers INSTRUCTOR-scoped endpoints under /v1.
// All routes require a valid JWT and the INSTRUCTOR role; the handler
// additionally verifies the instructor is assigned to the offering.
func RegisterInstructor(e *echo.Echo, h *handler.InstructorHandler, jwtSecret string) {
	g := e.Group(
		"/v1/instructor",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("INSTRUCTOR"),
	)
	// Confirmed and pending enrollments for one offering.
	g.GET("/offerings/:id/roster", h.Roster)
	// Waitlist entries for one offering, oldest first.
	g.GET("/offerings/:id/waitlist", h.Waitlisted)
}
