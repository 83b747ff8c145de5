package repository

import (
	"context"
	"database/sql"
	"time"
)

// WaitlistRepo provides the read side of waitlist entries for the
// instructor view.  Entries are created by the checkout engine through
// CheckoutStore; promotion is manual and out of scope here.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// WaitlistDetail is a waitlist entry joined with purchaser identity.
type WaitlistDetail struct {
	ID         uint64 `json:"id"`
	OfferingID uint64 `json:"offering_id"`
	UserID     uint64 `json:"user_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Notes      string `json:"notes"`
	CreatedAt  string `json:"created_at"`
}

// ListByOffering returns all waitlist entries for an offering in
// arrival order (oldest first), since promotion is first come first
// served.
func (r *WaitlistRepo) ListByOffering(ctx context.Context, offeringID uint64) ([]WaitlistDetail, error) {
	const q = `SELECT w.id, w.offering_id, w.user_id, u.email, u.first_name, u.last_name, u.phone, w.notes, w.created_at
	FROM waitlist_entries w
	JOIN users u ON u.id = w.user_id
	WHERE w.offering_id = ?
	ORDER BY w.created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]WaitlistDetail, 0)
	for rows.Next() {
		var e WaitlistDetail
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.OfferingID, &e.UserID, &e.Email, &e.FirstName, &e.LastName, &e.Phone, &e.Notes, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
