package model

import "time"

// Reservation statuses.  DRAFT, CANCELLED and WAITLISTED never occupy
// capacity; PENDING_PAYMENT and CONFIRMED do.  CONFIRMED, CANCELLED and
// WAITLISTED are terminal.
const (
    StatusDraft          = "DRAFT"
    StatusPendingPayment = "PENDING_PAYMENT"
    StatusConfirmed      = "CONFIRMED"
    StatusCancelled      = "CANCELLED"
    StatusWaitlisted     = "WAITLISTED"
)

// Payment options for a reservation.
const (
    PayFull    = "FULL"
    PayDeposit = "DEPOSIT"
)

// Reservation records a purchaser's claim on an offering: a class
// enrollment, an online-course enrollment or a store order line.  The
// amount due is frozen at the moment a gateway intent was last issued;
// any input that changes the quote (payment option, promo code)
// replaces the intent and rewrites AmountDueCents.
//
// Fields:
//  ID              – primary key identifier.
//  OfferingID      – offering being claimed.
//  UserID          – purchaser.
//  Status          – one of the Status* constants above.
//  PaymentOption   – FULL or DEPOSIT.
//  AmountDueCents  – total of the quote backing the current intent.
//  PromoCode       – applied promo code, if any.
//  PaymentIntentID – gateway intent id, set once an intent exists.
//  PaymentRef      – gateway payment reference recorded at confirm.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
    ID              uint64    // reservations.id
    OfferingID      uint64    // reservations.offering_id
    UserID          uint64    // reservations.user_id
    Status          string    // reservations.status
    PaymentOption   string    // reservations.payment_option
    AmountDueCents  int64     // reservations.amount_due_cents
    PromoCode       *string   // reservations.promo_code (nullable)
    PaymentIntentID *string   // reservations.payment_intent_id (nullable)
    PaymentRef      *string   // reservations.payment_ref (nullable)
    CreatedAt       time.Time // reservations.created_at
    UpdatedAt       time.Time // reservations.updated_at
}

// Terminal reports whether the reservation can no longer change state.
func (r *Reservation) Terminal() bool {
    switch r.Status {
    case StatusConfirmed, StatusCancelled, StatusWaitlisted:
        return true
    }
    return false
}

// CountsAgainstCapacity reports whether the reservation occupies a spot
// in the capacity ledger.  This is the single spot-counting rule; every
// availability display and every enforcement check derives from it.
func (r *Reservation) CountsAgainstCapacity() bool {
    return r.Status == StatusPendingPayment || r.Status == StatusConfirmed
}
