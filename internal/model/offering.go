package model

import "time"

// Offering kinds supported by the checkout engine.  A course schedule
// and a store product are priced and reserved through the same code
// path; the kind only changes which tax convention applies and how the
// catalog presents the item.
const (
    OfferingCourse       = "COURSE"        // in-person class schedule
    OfferingOnlineCourse = "ONLINE_COURSE" // self-paced online course
    OfferingProduct      = "PRODUCT"       // store merchandise (capacity = stock)
)

// Offering is a purchasable unit with finite capacity: one schedule of
// an in-person class, an online course, or a store product.  Offerings
// are published by an external admin workflow and are read-only to the
// checkout engine.
//
// Fields:
//  ID           – primary key identifier.
//  Kind         – one of the Offering* constants above.
//  Title        – display title (course name or product name).
//  Capacity     – maximum spots (or stock units) that may be sold.
//  PriceCents   – full price in cents.
//  DepositCents – optional deposit amount in cents; nil when the
//                 offering does not support deposit payment.
//  TaxIncluded  – whether the price already contains tax (merchandise)
//                 or tax is added on top (courses).
//  StartsAt     – schedule start time; nil for products and online
//                 courses.
//  IsActive     – whether the offering is open for purchase.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Offering struct {
    ID           uint64     // offerings.id
    Kind         string     // offerings.kind
    Title        string     // offerings.title
    Capacity     uint32     // offerings.capacity
    PriceCents   int64      // offerings.price_cents
    DepositCents *int64     // offerings.deposit_cents (nullable)
    TaxIncluded  bool       // offerings.tax_included
    StartsAt     *time.Time // offerings.starts_at (nullable)
    IsActive     bool       // offerings.is_active
    CreatedAt    time.Time  // offerings.created_at
    UpdatedAt    time.Time  // offerings.updated_at
}
