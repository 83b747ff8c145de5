package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rangefront/course-enrollment/internal/handler"
	"github.com/rangefront/course-enrollment/internal/middleware"
)

// RegisterStudent registers the checkout flow endpoints under /v1.
//
// Draft creation is special: it accepts both guests and logged-in
// students, so it uses OptionalJWT rather than the strict middleware.
// A guest draft creates an account inline and the response carries a
// token pair for the rest of the flow.  Every other endpoint requires
// a valid JWT with the STUDENT role.
func RegisterStudent(e *echo.Echo, h *handler.CheckoutHandler, jwtSecret string) {
	e.POST("/v1/checkout/drafts", h.CreateDraft, middleware.OptionalJWT(jwtSecret))

	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STUDENT"),
	)
	// Price the draft and claim a spot; sold-out flips to the waitlist.
	g.POST("/reservations/:id/reserve", h.Reserve)
	// Inputs that change the quote; each discards and reissues the
	// payment intent.
	g.PUT("/reservations/:id/payment-option", h.ChangePaymentOption)
	g.POST("/reservations/:id/promo", h.ApplyPromo)
	g.DELETE("/reservations/:id/promo", h.RemovePromo)
	// Settlement.
	g.POST("/reservations/:id/confirm", h.Confirm)
	g.POST("/reservations/:id/confirm-free", h.ConfirmFree)
	// Abandon a reservation, returning its spot to the pool.
	g.DELETE("/reservations/:id", h.Cancel)
	// The caller's own reservations.
	g.GET("/my-reservations", h.ListReservations)
	g.GET("/reservations/:id", h.GetReservation)
	// Explicit waitlist join for a full offering.
	g.POST("/offerings/:id/waitlist", h.JoinWaitlist)
}
