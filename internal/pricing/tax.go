package pricing

import "context"

// FlatRateTax applies a single jurisdiction rate expressed in basis
// points (825 = 8.25%).  The school operates in one state, so the
// jurisdiction lookup collapses to configuration.
type FlatRateTax struct {
    RateBps int64
}

// NewFlatRateTax returns a FlatRateTax for the given rate.
func NewFlatRateTax(rateBps int64) *FlatRateTax { return &FlatRateTax{RateBps: rateBps} }

// Compute returns the tax in cents for the amount.  For an included
// amount it backs out the contained portion; otherwise the result is
// additive on top.  Integer division truncates toward zero, matching
// the cents convention used everywhere else.
func (t *FlatRateTax) Compute(ctx context.Context, amountCents int64, included bool) (int64, error) {
    if t.RateBps <= 0 || amountCents <= 0 {
        return 0, nil
    }
    if included {
        return amountCents * t.RateBps / (10000 + t.RateBps), nil
    }
    return amountCents * t.RateBps / 10000, nil
}
