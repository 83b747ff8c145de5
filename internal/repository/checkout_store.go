package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rangefront/course-enrollment/internal/checkout"
	"github.com/rangefront/course-enrollment/internal/model"
)

// occupiedStatuses is the WHERE clause fragment for reservations that
// count against capacity.  DRAFT, CANCELLED and WAITLISTED rows never
// appear here; keeping the predicate in one place keeps every display
// and every enforcement check on the same formula.
const occupiedStatuses = `('PENDING_PAYMENT','CONFIRMED')`

// CheckoutStore is the MySQL implementation of checkout.Store.  The
// capacity check-and-promote and the confirm flip each run inside a
// transaction that locks the rows they decide on, so two purchasers
// racing for the last spot cannot both win and two confirm retries
// cannot both fire side effects.
type CheckoutStore struct {
	db *sql.DB
}

// NewCheckoutStore returns a CheckoutStore bound to the given database.
func NewCheckoutStore(db *sql.DB) *CheckoutStore { return &CheckoutStore{db: db} }

// DB exposes the underlying handle for callers that manage their own
// transactions.
func (s *CheckoutStore) DB() *sql.DB { return s.db }

const reservationCols = `id, offering_id, user_id, status, payment_option, amount_due_cents, promo_code, payment_intent_id, payment_ref, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var promo, intentID, payRef sql.NullString
	err := row.Scan(&res.ID, &res.OfferingID, &res.UserID, &res.Status, &res.PaymentOption,
		&res.AmountDueCents, &promo, &intentID, &payRef, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if promo.Valid {
		v := promo.String
		res.PromoCode = &v
	}
	if intentID.Valid {
		v := intentID.String
		res.PaymentIntentID = &v
	}
	if payRef.Valid {
		v := payRef.String
		res.PaymentRef = &v
	}
	return &res, nil
}

func scanOffering(row rowScanner) (*model.Offering, error) {
	var off model.Offering
	var deposit sql.NullInt64
	var startsAt sql.NullTime
	err := row.Scan(&off.ID, &off.Kind, &off.Title, &off.Capacity, &off.PriceCents,
		&deposit, &off.TaxIncluded, &startsAt, &off.IsActive, &off.CreatedAt, &off.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deposit.Valid {
		v := deposit.Int64
		off.DepositCents = &v
	}
	if startsAt.Valid {
		v := startsAt.Time.UTC()
		off.StartsAt = &v
	}
	return &off, nil
}

const offeringCols = `id, kind, title, capacity, price_cents, deposit_cents, tax_included, starts_at, is_active, created_at, updated_at`

// GetOffering loads an offering by id.
func (s *CheckoutStore) GetOffering(ctx context.Context, id uint64) (*model.Offering, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+offeringCols+` FROM offerings WHERE id = ?`, id)
	off, err := scanOffering(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkout.ErrNotFound
	}
	return off, err
}

// CreateDraft inserts a DRAFT reservation and populates its ID and
// timestamps from the stored row.
func (s *CheckoutStore) CreateDraft(ctx context.Context, res *model.Reservation) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reservations (offering_id, user_id, status, payment_option, amount_due_cents) VALUES (?, ?, ?, ?, 0)`,
		res.OfferingID, res.UserID, model.StatusDraft, res.PaymentOption)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	stored, err := s.GetReservation(ctx, res.ID)
	if err != nil {
		return err
	}
	*res = *stored
	return nil
}

// GetReservation loads a reservation by id.
func (s *CheckoutStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkout.ErrNotFound
	}
	return res, err
}

// TryReserve promotes a DRAFT reservation to PENDING_PAYMENT iff the
// offering still has a free spot.  The offering row is locked FOR
// UPDATE for the duration of the count-and-promote, which serializes
// concurrent attempts on the same offering.
func (s *CheckoutStore) TryReserve(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`, reservationID)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkout.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if res.Status == model.StatusPendingPayment {
		// already holding a spot; promote is a no-op
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return res, nil
	}
	if res.Status != model.StatusDraft {
		return nil, checkout.ErrIntegrity
	}

	// Lock the offering row so the count below cannot race another
	// promote on the same offering.
	var capacity uint32
	if err := tx.QueryRowContext(ctx, `SELECT capacity FROM offerings WHERE id = ? FOR UPDATE`, res.OfferingID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkout.ErrNotFound
		}
		return nil, err
	}
	var occupied int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE offering_id = ? AND status IN `+occupiedStatuses,
		res.OfferingID).Scan(&occupied); err != nil {
		return nil, err
	}
	if occupied >= int(capacity) {
		return nil, checkout.ErrSoldOut
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ?`, model.StatusPendingPayment, reservationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	res.Status = model.StatusPendingPayment
	return res, nil
}

// Release cancels a non-terminal reservation, freeing its spot.
func (s *CheckoutStore) Release(ctx context.Context, reservationID uint64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status IN ('DRAFT','PENDING_PAYMENT')`,
		model.StatusCancelled, reservationID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// either absent or already terminal
		if _, err := s.GetReservation(ctx, reservationID); err != nil {
			return err
		}
		return checkout.ErrIntegrity
	}
	return nil
}

// AvailableSpots computes max(0, capacity − occupied) for an offering.
func (s *CheckoutStore) AvailableSpots(ctx context.Context, offeringID uint64) (int, error) {
	var capacity uint32
	if err := s.db.QueryRowContext(ctx, `SELECT capacity FROM offerings WHERE id = ?`, offeringID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, checkout.ErrNotFound
		}
		return 0, err
	}
	var occupied int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE offering_id = ? AND status IN `+occupiedStatuses,
		offeringID).Scan(&occupied); err != nil {
		return 0, err
	}
	spots := int(capacity) - occupied
	if spots < 0 {
		spots = 0
	}
	return spots, nil
}

// SetPricing rewrites the quoted amount, payment option, promo code and
// gateway intent id after a (re)quote.
func (s *CheckoutStore) SetPricing(ctx context.Context, reservationID uint64, paymentOption string, promoCode *string, amountDueCents int64, intentID *string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET payment_option = ?, promo_code = ?, amount_due_cents = ?, payment_intent_id = ? WHERE id = ? AND status IN ('DRAFT','PENDING_PAYMENT')`,
		paymentOption, promoCode, amountDueCents, intentID, reservationID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetReservation(ctx, reservationID); err != nil {
			return err
		}
		return checkout.ErrIntegrity
	}
	return nil
}

// MarkWaitlisted moves a DRAFT reservation to the terminal WAITLISTED
// state.
func (s *CheckoutStore) MarkWaitlisted(ctx context.Context, reservationID uint64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
		model.StatusWaitlisted, reservationID, model.StatusDraft)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetReservation(ctx, reservationID); err != nil {
			return err
		}
		return checkout.ErrIntegrity
	}
	return nil
}

// CreateWaitlistEntry persists a waitlist record.
func (s *CheckoutStore) CreateWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO waitlist_entries (offering_id, user_id, notes) VALUES (?, ?, ?)`,
		entry.OfferingID, entry.UserID, entry.Notes)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = uint64(id)
	return nil
}

// ConfirmOnce flips a reservation to CONFIRMED exactly once.  The row
// is locked FOR UPDATE so a concurrent retry observes either the
// pre-flip row (and performs the flip itself) or the confirmed row
// (and reports first=false).
func (s *CheckoutStore) ConfirmOnce(ctx context.Context, reservationID uint64, paymentRef string) (*model.Reservation, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`, reservationID)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, checkout.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	switch res.Status {
	case model.StatusConfirmed:
		if res.PaymentRef != nil && *res.PaymentRef == paymentRef {
			if err := tx.Commit(); err != nil {
				return nil, false, err
			}
			committed = true
			return res, false, nil
		}
		return nil, false, checkout.ErrIntegrity
	case model.StatusPendingPayment:
		// fall through to the flip
	default:
		// DRAFT never claimed a spot; CANCELLED and WAITLISTED are
		// terminal.  None of them may confirm.
		return nil, false, checkout.ErrIntegrity
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, payment_ref = ? WHERE id = ?`,
		model.StatusConfirmed, paymentRef, reservationID); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	res.Status = model.StatusConfirmed
	res.PaymentRef = &paymentRef
	return res, true, nil
}

// ListAbandoned returns DRAFT and PENDING_PAYMENT reservations created
// before the cutoff.
func (s *CheckoutStore) ListAbandoned(ctx context.Context, cutoff time.Time) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE status IN ('DRAFT','PENDING_PAYMENT') AND created_at < ?`,
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
