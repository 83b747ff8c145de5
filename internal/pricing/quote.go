// Package pricing computes price quotes for checkout.  A quote is a
// derived value: it is never persisted and is recomputed whenever any
// of its inputs (offering, payment option, promo code) changes.
package pricing

// Quote is the price breakdown for one reservation at a point in time.
// All amounts are in cents.  When TaxIncluded is true the total already
// contains the tax portion; otherwise tax is additive on top of the
// discounted subtotal.
type Quote struct {
    SubtotalCents int64 `json:"subtotal_cents"`
    DiscountCents int64 `json:"discount_cents"`
    TaxCents      int64 `json:"tax_cents"`
    TotalCents    int64 `json:"total_cents"`
    TaxIncluded   bool  `json:"tax_included"`
}

// Free reports whether the quote settles at zero.  A free settlement
// bypasses the payment gateway entirely.
func (q *Quote) Free() bool { return q.TotalCents == 0 }
