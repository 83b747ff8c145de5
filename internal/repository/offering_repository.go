package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rangefront/course-enrollment/internal/checkout"
	"github.com/rangefront/course-enrollment/internal/model"
)

// OfferingRepo provides catalog reads over the offerings table.
// Offerings are published by an external admin workflow; this
// repository never writes them.
type OfferingRepo struct {
	db *sql.DB
}

// NewOfferingRepo returns an OfferingRepo bound to the given database.
func NewOfferingRepo(db *sql.DB) *OfferingRepo { return &OfferingRepo{db: db} }

// GetByID returns a single offering, active or not.
func (r *OfferingRepo) GetByID(ctx context.Context, id uint64) (*model.Offering, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+offeringCols+` FROM offerings WHERE id = ?`, id)
	off, err := scanOffering(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkout.ErrNotFound
	}
	return off, err
}

// ListActive returns active offerings, optionally filtered by kind,
// ordered by start time (soonest first) then title.  Offerings without
// a start time (products, online courses) sort last.
func (r *OfferingRepo) ListActive(ctx context.Context, kind string) ([]model.Offering, error) {
	q := `SELECT ` + offeringCols + ` FROM offerings WHERE is_active = 1`
	args := []interface{}{}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY starts_at IS NULL, starts_at, title`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Offering, 0)
	for rows.Next() {
		off, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *off)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InstructorTeaches reports whether the given instructor is assigned
// to the offering.  Assignments live in the offering_instructors
// mapping table managed by the admin workflow.
func (r *OfferingRepo) InstructorTeaches(ctx context.Context, offeringID, instructorID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offering_instructors WHERE offering_id = ? AND user_id = ?`,
		offeringID, instructorID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
