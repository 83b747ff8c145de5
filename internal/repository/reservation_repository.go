package repository

import (
	"context"
	"database/sql"
	"time"
)

// ReservationRepo provides the read side of reservations for display:
// a purchaser's own history and the instructor roster.  All state
// transitions go through CheckoutStore; nothing here mutates rows.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationDetail is a reservation joined with its offering for
// display to the purchaser.
type ReservationDetail struct {
	ID             uint64  `json:"id"`
	OfferingID     uint64  `json:"offering_id"`
	OfferingKind   string  `json:"offering_kind"`
	OfferingTitle  string  `json:"offering_title"`
	StartsAt       *string `json:"starts_at,omitempty"`
	Status         string  `json:"status"`
	PaymentOption  string  `json:"payment_option"`
	AmountDueCents int64   `json:"amount_due_cents"`
	PromoCode      *string `json:"promo_code,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// RosterEntry extends ReservationDetail with purchaser identity for
// the instructor view.
type RosterEntry struct {
	ReservationDetail
	UserID    uint64 `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

const detailQuery = `SELECT r.id, r.offering_id, o.kind, o.title, o.starts_at,
	       r.status, r.payment_option, r.amount_due_cents, r.promo_code, r.created_at
	FROM reservations r
	JOIN offerings o ON o.id = r.offering_id`

func scanDetail(row rowScanner, d *ReservationDetail) error {
	var startsAt sql.NullTime
	var promo sql.NullString
	var createdAt time.Time
	if err := row.Scan(&d.ID, &d.OfferingID, &d.OfferingKind, &d.OfferingTitle, &startsAt,
		&d.Status, &d.PaymentOption, &d.AmountDueCents, &promo, &createdAt); err != nil {
		return err
	}
	if startsAt.Valid {
		iso := startsAt.Time.UTC().Format(time.RFC3339)
		d.StartsAt = &iso
	}
	if promo.Valid {
		v := promo.String
		d.PromoCode = &v
	}
	d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return nil
}

// ListByUser returns all reservations for the given purchaser, newest
// first.  When none exist, an empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx, detailQuery+` WHERE r.user_id = ? ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		if err := scanDetail(rows, &d); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// GetByIDForUser returns a single reservation for the given purchaser.
// Ownership is enforced in the query; a reservation belonging to
// another user reads as sql.ErrNoRows.
func (r *ReservationRepo) GetByIDForUser(ctx context.Context, reservationID, userID uint64) (*ReservationDetail, error) {
	row := r.db.QueryRowContext(ctx, detailQuery+` WHERE r.id = ? AND r.user_id = ?`, reservationID, userID)
	var d ReservationDetail
	if err := scanDetail(row, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// OwnedBy reports whether the reservation belongs to the given user.
// It distinguishes "absent" (sql.ErrNoRows) from "owned by someone
// else" (ErrForbidden) so handlers can return 404 vs 403.
func (r *ReservationRepo) OwnedBy(ctx context.Context, reservationID, userID uint64) error {
	var owner uint64
	if err := r.db.QueryRowContext(ctx, `SELECT user_id FROM reservations WHERE id = ?`, reservationID).Scan(&owner); err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	return nil
}

// ListRoster returns all reservations for an offering with purchaser
// identity, newest first, for the instructor view.
func (r *ReservationRepo) ListRoster(ctx context.Context, offeringID uint64) ([]RosterEntry, error) {
	const q = `SELECT r.id, r.offering_id, o.kind, o.title, o.starts_at,
	       r.status, r.payment_option, r.amount_due_cents, r.promo_code, r.created_at,
	       u.id, u.email, u.first_name, u.last_name, u.phone
	FROM reservations r
	JOIN offerings o ON o.id = r.offering_id
	JOIN users u ON u.id = r.user_id
	WHERE r.offering_id = ?
	ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]RosterEntry, 0)
	for rows.Next() {
		var e RosterEntry
		var startsAt sql.NullTime
		var promo sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.OfferingID, &e.OfferingKind, &e.OfferingTitle, &startsAt,
			&e.Status, &e.PaymentOption, &e.AmountDueCents, &promo, &createdAt,
			&e.UserID, &e.Email, &e.FirstName, &e.LastName, &e.Phone); err != nil {
			return nil, err
		}
		if startsAt.Valid {
			iso := startsAt.Time.UTC().Format(time.RFC3339)
			e.StartsAt = &iso
		}
		if promo.Valid {
			v := promo.String
			e.PromoCode = &v
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
