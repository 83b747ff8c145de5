package model

import "time"

// Promo discount kinds.
const (
    PromoPercent = "PERCENT" // Value is a percentage of the base amount
    PromoFixed   = "FIXED"   // Value is a fixed discount in cents
)

// PromoCode is a discount rule keyed by its code.  Codes are managed by
// an external marketing workflow and are read-only to checkout.  A
// percentage of 100 or more (or a fixed value covering the whole base)
// produces a free settlement.
//
// Fields:
//  ID         – primary key identifier.
//  Code       – the code as typed by the purchaser (stored upper-case).
//  Kind       – PERCENT or FIXED.
//  Value      – percentage (0–100) or cents depending on Kind.
//  AppliesTo  – optional offering kind restriction; nil applies to all.
//  ValidFrom  – optional start of the validity window.
//  ValidUntil – optional end of the validity window.
//  CreatedAt  – creation timestamp.
type PromoCode struct {
    ID         uint64     // promo_codes.id
    Code       string     // promo_codes.code
    Kind       string     // promo_codes.kind
    Value      int64      // promo_codes.value
    AppliesTo  *string    // promo_codes.applies_to (nullable)
    ValidFrom  *time.Time // promo_codes.valid_from (nullable)
    ValidUntil *time.Time // promo_codes.valid_until (nullable)
    CreatedAt  time.Time  // promo_codes.created_at
}
