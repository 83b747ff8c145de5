package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rangefront/course-enrollment/internal/model"
	"github.com/rangefront/course-enrollment/internal/pricing"
)

// PromoRepo validates promo codes against the promo_codes table.  It
// implements pricing.PromoService: the quoter calls Validate and gets
// either a discount in cents or a *pricing.PromoError with the
// rejection reason.
type PromoRepo struct {
	db *sql.DB
}

// NewPromoRepo returns a PromoRepo bound to the given database.
func NewPromoRepo(db *sql.DB) *PromoRepo { return &PromoRepo{db: db} }

// Validate looks up the code, checks its validity window and offering
// restriction, and computes the discount against the subtotal.  A
// percentage at or above 100, or a fixed value covering the subtotal,
// yields a discount equal to the subtotal (a free settlement upstream).
func (r *PromoRepo) Validate(ctx context.Context, code string, offering *model.Offering, subtotalCents int64) (int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var p model.PromoCode
	var appliesTo sql.NullString
	var validFrom, validUntil sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, kind, value, applies_to, valid_from, valid_until, created_at FROM promo_codes WHERE code = ?`,
		code).Scan(&p.ID, &p.Code, &p.Kind, &p.Value, &appliesTo, &validFrom, &validUntil, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &pricing.PromoError{Code: code, Reason: pricing.PromoNotFound}
	}
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if validFrom.Valid && now.Before(validFrom.Time) {
		return 0, &pricing.PromoError{Code: code, Reason: pricing.PromoExpired}
	}
	if validUntil.Valid && now.After(validUntil.Time) {
		return 0, &pricing.PromoError{Code: code, Reason: pricing.PromoExpired}
	}
	if appliesTo.Valid && appliesTo.String != offering.Kind {
		return 0, &pricing.PromoError{Code: code, Reason: pricing.PromoNotApplicable}
	}

	switch p.Kind {
	case model.PromoPercent:
		d := subtotalCents * p.Value / 100
		if d > subtotalCents {
			d = subtotalCents
		}
		return d, nil
	case model.PromoFixed:
		d := p.Value
		if d > subtotalCents {
			d = subtotalCents
		}
		return d, nil
	}
	return 0, &pricing.PromoError{Code: code, Reason: pricing.PromoNotApplicable}
}
