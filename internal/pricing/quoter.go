package pricing

import (
    "context"
    "errors"
    "fmt"

    "github.com/rangefront/course-enrollment/internal/model"
)

// Promo rejection reasons returned by a PromoService.
const (
    PromoNotFound      = "not_found"
    PromoExpired       = "expired"
    PromoNotApplicable = "not_applicable_to_offering"
)

// PromoError reports why a promo code was rejected.  It is recoverable:
// the purchaser can retry with a different code or no code at all.
type PromoError struct {
    Code   string // the code as submitted
    Reason string // one of the Promo* reason constants
}

func (e *PromoError) Error() string {
    return fmt.Sprintf("promo %q rejected: %s", e.Code, e.Reason)
}

// ErrDepositNotConfigured is returned when a deposit quote is requested
// for an offering that has no deposit amount, or whose deposit is not
// strictly less than the full price.  This is a configuration error and
// is surfaced rather than silently falling back to the full price.
var ErrDepositNotConfigured = errors.New("deposit payment not configured for offering")

// PromoService validates a promo code against an offering and returns
// the discount in cents.  Implementations return a *PromoError for
// rejected codes.  The discount may exceed the subtotal; the quoter
// clamps it.
type PromoService interface {
    Validate(ctx context.Context, code string, offering *model.Offering, subtotalCents int64) (int64, error)
}

// TaxService computes the tax in cents for a discounted amount.  The
// jurisdiction is fixed per deployment and lives in the implementation.
// When included is true the amount already contains tax and the result
// is the contained portion; otherwise the result is additive.
type TaxService interface {
    Compute(ctx context.Context, amountCents int64, included bool) (int64, error)
}

// Quoter computes quotes from an offering, a payment option and an
// optional promo code.  It owns no state beyond its two collaborators.
type Quoter struct {
    Promos PromoService
    Tax    TaxService
}

// NewQuoter constructs a Quoter.  Both collaborators must be non-nil.
func NewQuoter(promos PromoService, tax TaxService) *Quoter {
    if promos == nil || tax == nil {
        panic("nil service passed to NewQuoter")
    }
    return &Quoter{Promos: promos, Tax: tax}
}

// Quote computes the price breakdown for the offering under the given
// payment option.  promoCode may be empty.  Errors are either a
// *PromoError (recoverable), ErrDepositNotConfigured, or a transient
// failure from a collaborator.
func (q *Quoter) Quote(ctx context.Context, off *model.Offering, paymentOption, promoCode string) (*Quote, error) {
    var base int64
    switch paymentOption {
    case model.PayDeposit:
        if off.DepositCents == nil || *off.DepositCents <= 0 || *off.DepositCents >= off.PriceCents {
            return nil, ErrDepositNotConfigured
        }
        base = *off.DepositCents
    case model.PayFull:
        base = off.PriceCents
    default:
        return nil, fmt.Errorf("unknown payment option %q", paymentOption)
    }

    var discount int64
    if promoCode != "" {
        d, err := q.Promos.Validate(ctx, promoCode, off, base)
        if err != nil {
            return nil, err
        }
        discount = d
        if discount > base {
            discount = base
        }
        if discount < 0 {
            discount = 0
        }
    }

    taxable := base - discount
    var tax int64
    if taxable > 0 {
        t, err := q.Tax.Compute(ctx, taxable, off.TaxIncluded)
        if err != nil {
            return nil, err
        }
        tax = t
    }

    total := taxable
    if !off.TaxIncluded {
        total += tax
    }
    return &Quote{
        SubtotalCents: base,
        DiscountCents: discount,
        TaxCents:      tax,
        TotalCents:    total,
        TaxIncluded:   off.TaxIncluded,
    }, nil
}
