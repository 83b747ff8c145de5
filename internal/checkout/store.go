package checkout

import (
    "context"
    "time"

    "github.com/rangefront/course-enrollment/internal/model"
)

// Store is the authoritative reservation store.  Capacity enforcement
// lives here: TryReserve and ConfirmOnce must be atomic with respect
// to concurrent calls on the same offering, because two purchasers can
// race for the last spot.  The MySQL implementation uses a transaction
// with a row lock on the offering; the in-memory test store uses a
// mutex.  Client-side spot counts are advisory only and never gate
// anything.
type Store interface {
    // GetOffering loads an offering by id; ErrNotFound when absent.
    GetOffering(ctx context.Context, id uint64) (*model.Offering, error)

    // CreateDraft persists a new DRAFT reservation and fills in its ID.
    // Drafts never occupy capacity.
    CreateDraft(ctx context.Context, res *model.Reservation) error

    // GetReservation loads a reservation by id; ErrNotFound when absent.
    GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)

    // TryReserve atomically promotes a DRAFT reservation to
    // PENDING_PAYMENT iff the offering still has a free spot, counting
    // only PENDING_PAYMENT and CONFIRMED reservations.  It returns
    // ErrSoldOut when capacity is exhausted and is a no-op when the
    // reservation is already PENDING_PAYMENT.
    TryReserve(ctx context.Context, reservationID uint64) (*model.Reservation, error)

    // Release cancels a non-terminal reservation, freeing its spot.
    Release(ctx context.Context, reservationID uint64) error

    // AvailableSpots returns max(0, capacity − occupied) for the
    // offering.  This is the one spot-counting formula; every display
    // of "N spots left" goes through it.
    AvailableSpots(ctx context.Context, offeringID uint64) (int, error)

    // SetPricing rewrites the quoted amount, payment option, promo code
    // and gateway intent id on a reservation after a (re)quote.
    SetPricing(ctx context.Context, reservationID uint64, paymentOption string, promoCode *string, amountDueCents int64, intentID *string) error

    // MarkWaitlisted moves a DRAFT reservation to the terminal
    // WAITLISTED state.
    MarkWaitlisted(ctx context.Context, reservationID uint64) error

    // CreateWaitlistEntry persists a waitlist record and fills in its ID.
    CreateWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error

    // ConfirmOnce atomically flips a reservation to CONFIRMED and
    // records the payment reference.  The boolean reports whether this
    // call performed the flip; a repeat call with the same reference
    // observes the confirmed row and returns false, so side effects run
    // exactly once.  Confirming a CANCELLED or WAITLISTED reservation,
    // or a CONFIRMED one with a different reference, fails with
    // ErrIntegrity.
    ConfirmOnce(ctx context.Context, reservationID uint64, paymentRef string) (*model.Reservation, bool, error)

    // ListAbandoned returns DRAFT and PENDING_PAYMENT reservations
    // created before the cutoff, for the reaper.
    ListAbandoned(ctx context.Context, cutoff time.Time) ([]model.Reservation, error)
}

// Accounts creates purchaser accounts during inline registration at
// draft time.  ErrEmailExists-style conflicts surface as field-scoped
// validation errors in the engine.
type Accounts interface {
    Create(ctx context.Context, email, password, firstName, lastName, phone string) (uint64, error)
}

// Notifier publishes fire-and-forget confirmation and waitlist events.
// Failures are logged by the engine and never roll back a confirmed
// reservation.
type Notifier interface {
    EnrollmentConfirmed(ctx context.Context, res *model.Reservation, off *model.Offering) error
    WaitlistJoined(ctx context.Context, entry *model.WaitlistEntry, off *model.Offering) error
}

// AvailabilityCache invalidates cached capacity views after a
// transition changes the occupied count, so subsequent purchasers see
// fresh spot counts.
type AvailabilityCache interface {
    Invalidate(ctx context.Context, offeringID uint64)
}
