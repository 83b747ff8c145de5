package model

import "time"

// WaitlistEntry is the no-payment holding record created when an
// offering has zero available spots at draft time.  Entries never
// occupy capacity and are promoted manually; the checkout engine only
// creates them and publishes a waitlisted event.
//
// Fields:
//  ID         – primary key identifier.
//  OfferingID – offering the purchaser is waiting for.
//  UserID     – purchaser.
//  Notes      – free-form note supplied by the purchaser.
//  CreatedAt  – creation timestamp.
type WaitlistEntry struct {
    ID         uint64    // waitlist_entries.id
    OfferingID uint64    // waitlist_entries.offering_id
    UserID     uint64    // waitlist_entries.user_id
    Notes      string    // waitlist_entries.notes
    CreatedAt  time.Time // waitlist_entries.created_at
}
