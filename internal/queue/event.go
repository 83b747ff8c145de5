// Package queue defines message payloads exchanged over the message broker.
package queue

// EnrollmentConfirmedEvent is published when a reservation settles as
// CONFIRMED.  It carries enough information for downstream consumers
// (email, analytics) to act without querying the primary database.
type EnrollmentConfirmedEvent struct {
    ReservationID  uint64 `json:"reservation_id"`
    UserID         uint64 `json:"user_id"`
    OfferingID     uint64 `json:"offering_id"`
    OfferingKind   string `json:"offering_kind"`
    OfferingTitle  string `json:"offering_title"`
    StartsAt       string `json:"starts_at,omitempty"`
    PaymentOption  string `json:"payment_option"`
    AmountDueCents int64  `json:"amount_due_cents"`
    PaymentRef     string `json:"payment_ref"`
    ConfirmedAt    string `json:"confirmed_at"`
}

// WaitlistJoinedEvent is published when a purchaser lands on the
// waitlist for a full offering.  Notification of later availability is
// manual; this event only feeds the follow-up log.
type WaitlistJoinedEvent struct {
    EntryID       uint64 `json:"entry_id"`
    UserID        uint64 `json:"user_id"`
    OfferingID    uint64 `json:"offering_id"`
    OfferingTitle string `json:"offering_title"`
    JoinedAt      string `json:"joined_at"`
}
