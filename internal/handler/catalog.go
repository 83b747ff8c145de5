package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rangefront/course-enrollment/internal/checkout"
	"github.com/rangefront/course-enrollment/internal/model"
	"github.com/rangefront/course-enrollment/internal/repository"
)

// CatalogHandler serves the public browse endpoints.  Spot counts shown
// here are advisory; the engine recomputes under lock at reserve time.
type CatalogHandler struct {
	Offerings *repository.OfferingRepo
	Engine    *checkout.Engine
}

func NewCatalogHandler(off *repository.OfferingRepo, eng *checkout.Engine) *CatalogHandler {
	return &CatalogHandler{Offerings: off, Engine: eng}
}

func offeringJSON(off *model.Offering, spots int) echo.Map {
	m := echo.Map{
		"id":              off.ID,
		"kind":            off.Kind,
		"title":           off.Title,
		"capacity":        off.Capacity,
		"price_cents":     off.PriceCents,
		"tax_included":    off.TaxIncluded,
		"available_spots": spots,
	}
	if off.DepositCents != nil {
		m["deposit_cents"] = *off.DepositCents
	}
	if off.StartsAt != nil {
		m["starts_at"] = *off.StartsAt
	}
	return m
}

// ListOfferings returns active offerings, optionally filtered with
// ?kind=COURSE|ONLINE_COURSE|PRODUCT.
func (h *CatalogHandler) ListOfferings(c echo.Context) error {
	kind := strings.ToUpper(strings.TrimSpace(c.QueryParam("kind")))
	switch kind {
	case "", model.OfferingCourse, model.OfferingOnlineCourse, model.OfferingProduct:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown kind"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Offerings.ListActive(ctx, kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]echo.Map, 0, len(items))
	for i := range items {
		spots, err := h.Engine.AvailableSpots(ctx, items[i].ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		out = append(out, offeringJSON(&items[i], spots))
	}
	return c.JSON(http.StatusOK, echo.Map{"offerings": out})
}

// GetOffering returns one active offering with its advisory spot count.
func (h *CatalogHandler) GetOffering(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	off, err := h.Offerings.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "offering not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !off.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "offering not found"})
	}

	spots, err := h.Engine.AvailableSpots(ctx, off.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"offering": offeringJSON(off, spots)})
}
