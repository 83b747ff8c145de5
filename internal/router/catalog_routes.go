package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rangefront/course-enrollment/internal/handler"
)

// RegisterCatalog registers unauthenticated browse endpoints.  These
// routes apply no JWT or role middleware so that guests can inspect
// courses and merchandise before starting a checkout.  The extra
// middleware (typically a Redis response cache) wraps only these
// read-only routes.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mw...)
	// All active offerings, optionally filtered by ?kind=.
	g.GET("/offerings", h.ListOfferings)
	// One offering with its advisory available-spot count.
	g.GET("/offerings/:id", h.GetOffering)
}
