package checkout

import (
    "context"
    "errors"
    "log"
    "strconv"
    "strings"
    "time"

    "github.com/rangefront/course-enrollment/internal/model"
    "github.com/rangefront/course-enrollment/internal/payment"
    "github.com/rangefront/course-enrollment/internal/pricing"
)

// minPasswordLen applies to inline account creation at draft time.
const minPasswordLen = 8

// PurchaserInfo carries the identity fields collected at draft time.
// UserID is non-zero for an authenticated purchaser; otherwise the
// credential fields drive inline account creation.
type PurchaserInfo struct {
    UserID          uint64
    Email           string
    FirstName       string
    LastName        string
    Phone           string
    AcceptTerms     bool
    Password        string
    PasswordConfirm string
}

// ReserveResult is returned by QuoteAndReserve.  Exactly one of two
// shapes comes back: a priced reservation (Quote set, Intent set when
// the total is payable) or a waitlisted one (Waitlisted true, no quote,
// no intent).
type ReserveResult struct {
    Reservation *model.Reservation `json:"reservation"`
    Quote       *pricing.Quote     `json:"quote,omitempty"`
    Intent      *payment.Intent    `json:"intent,omitempty"`
    Waitlisted  bool               `json:"waitlisted"`
}

// Engine owns the lifecycle of a purchase attempt from draft to a
// terminal state.  All state lives in the Store; the engine holds no
// mutable state between requests, so a single Engine value is shared
// across handlers.
type Engine struct {
    store    Store
    accounts Accounts
    quoter   *pricing.Quoter
    gateway  payment.Gateway
    notifier Notifier
    cache    AvailabilityCache // may be nil
    currency string
}

// NewEngine wires the engine.  store, accounts, quoter and gateway are
// required; notifier and cache may be nil and are then skipped.
func NewEngine(store Store, accounts Accounts, quoter *pricing.Quoter, gateway payment.Gateway, notifier Notifier, cache AvailabilityCache, currency string) *Engine {
    if store == nil || accounts == nil || quoter == nil || gateway == nil {
        panic("nil dependency passed to NewEngine")
    }
    return &Engine{
        store:    store,
        accounts: accounts,
        quoter:   quoter,
        gateway:  gateway,
        notifier: notifier,
        cache:    cache,
        currency: currency,
    }
}

// CreateDraft validates purchaser info, creates the account when the
// purchaser is a guest, and persists a DRAFT reservation.  Validation
// failures are field-scoped; a draft never occupies capacity.
func (e *Engine) CreateDraft(ctx context.Context, offeringID uint64, info PurchaserInfo, paymentOption string) (*model.Reservation, error) {
    off, err := e.store.GetOffering(ctx, offeringID)
    if err != nil {
        return nil, err
    }
    if !off.IsActive {
        return nil, ErrNotFound
    }

    v := ValidationError{}
    if paymentOption != model.PayFull && paymentOption != model.PayDeposit {
        v["payment_option"] = "must be FULL or DEPOSIT"
    }
    if paymentOption == model.PayDeposit && off.DepositCents == nil {
        v["payment_option"] = "offering does not support deposit payment"
    }
    info.Email = strings.ToLower(strings.TrimSpace(info.Email))
    if info.Email == "" || !strings.Contains(info.Email, "@") {
        v["email"] = "a valid email is required"
    }
    if strings.TrimSpace(info.FirstName) == "" {
        v["first_name"] = "first name is required"
    }
    if strings.TrimSpace(info.LastName) == "" {
        v["last_name"] = "last name is required"
    }
    if !info.AcceptTerms {
        v["accept_terms"] = "terms must be accepted"
    }
    if info.UserID == 0 {
        if len(info.Password) < minPasswordLen {
            v["password"] = "password must be at least " + strconv.Itoa(minPasswordLen) + " characters"
        } else if info.Password != info.PasswordConfirm {
            v["password_confirm"] = "passwords do not match"
        }
    }
    if len(v) > 0 {
        return nil, v
    }

    userID := info.UserID
    if userID == 0 {
        uid, err := e.accounts.Create(ctx, info.Email, info.Password, info.FirstName, info.LastName, info.Phone)
        if err != nil {
            if errors.Is(err, ErrEmailExists) {
                return nil, ValidationError{"email": "an account with this email already exists; log in instead"}
            }
            return nil, err
        }
        userID = uid
    }

    res := &model.Reservation{
        OfferingID:    offeringID,
        UserID:        userID,
        Status:        model.StatusDraft,
        PaymentOption: paymentOption,
    }
    if err := e.store.CreateDraft(ctx, res); err != nil {
        return nil, err
    }
    return res, nil
}

// QuoteAndReserve runs the ledger first, then the quoter, then the
// gateway.  Sold-out short-circuits to the waitlist rather than
// erroring.  A zero total skips the gateway entirely; the reservation
// is then confirmable through ConfirmFree.
func (e *Engine) QuoteAndReserve(ctx context.Context, reservationID uint64) (*ReserveResult, error) {
    res, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.Terminal() {
        return nil, ErrIntegrity
    }
    off, err := e.store.GetOffering(ctx, res.OfferingID)
    if err != nil {
        return nil, err
    }

    res, err = e.store.TryReserve(ctx, reservationID)
    if errors.Is(err, ErrSoldOut) {
        return e.waitlist(ctx, reservationID, off)
    }
    if err != nil {
        return nil, err
    }

    promo := ""
    if res.PromoCode != nil {
        promo = *res.PromoCode
    }
    quote, err := e.quoter.Quote(ctx, off, res.PaymentOption, promo)
    if err != nil {
        return nil, err
    }

    var intent *payment.Intent
    var intentID *string
    if !quote.Free() {
        in, err := e.gateway.CreateIntent(ctx, quote.TotalCents, e.currency, intentMetadata(res, off))
        if err != nil {
            return nil, err
        }
        intent = in
        intentID = &in.ID
    }
    if err := e.store.SetPricing(ctx, reservationID, res.PaymentOption, res.PromoCode, quote.TotalCents, intentID); err != nil {
        return nil, err
    }
    res, err = e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    e.invalidate(ctx, off.ID)
    return &ReserveResult{Reservation: res, Quote: quote, Intent: intent}, nil
}

// ChangePaymentOption re-quotes under the new option and replaces any
// live gateway intent.  An intent is never reused across a changed
// amount.
func (e *Engine) ChangePaymentOption(ctx context.Context, reservationID uint64, option string) (*ReserveResult, error) {
    if option != model.PayFull && option != model.PayDeposit {
        return nil, ValidationError{"payment_option": "must be FULL or DEPOSIT"}
    }
    return e.requote(ctx, reservationID, func(res *model.Reservation) {
        res.PaymentOption = option
    })
}

// ApplyPromo attaches a promo code and re-quotes.  Rejected codes come
// back as *pricing.PromoError and leave the reservation untouched.
func (e *Engine) ApplyPromo(ctx context.Context, reservationID uint64, code string) (*ReserveResult, error) {
    code = strings.ToUpper(strings.TrimSpace(code))
    if code == "" {
        return nil, ValidationError{"promo_code": "promo code is required"}
    }
    return e.requote(ctx, reservationID, func(res *model.Reservation) {
        res.PromoCode = &code
    })
}

// RemovePromo drops the promo code and re-quotes so a removed code can
// never leave a stale discounted total behind.
func (e *Engine) RemovePromo(ctx context.Context, reservationID uint64) (*ReserveResult, error) {
    return e.requote(ctx, reservationID, func(res *model.Reservation) {
        res.PromoCode = nil
    })
}

// requote applies mutate to a copy of the reservation, recomputes the
// quote and swaps the gateway intent when one exists.  The old intent
// is cancelled before a new one is issued for the new total.
func (e *Engine) requote(ctx context.Context, reservationID uint64, mutate func(*model.Reservation)) (*ReserveResult, error) {
    res, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.Terminal() {
        return nil, ErrIntegrity
    }
    off, err := e.store.GetOffering(ctx, res.OfferingID)
    if err != nil {
        return nil, err
    }
    mutate(res)

    promo := ""
    if res.PromoCode != nil {
        promo = *res.PromoCode
    }
    quote, err := e.quoter.Quote(ctx, off, res.PaymentOption, promo)
    if err != nil {
        return nil, err
    }

    hadIntent := res.PaymentIntentID != nil
    if hadIntent {
        if err := e.gateway.CancelIntent(ctx, *res.PaymentIntentID); err != nil && !errors.Is(err, payment.ErrIntentNotFound) {
            return nil, err
        }
    }
    var intent *payment.Intent
    var intentID *string
    if !quote.Free() && res.Status == model.StatusPendingPayment {
        in, err := e.gateway.CreateIntent(ctx, quote.TotalCents, e.currency, intentMetadata(res, off))
        if err != nil {
            return nil, err
        }
        intent = in
        intentID = &in.ID
    }
    if err := e.store.SetPricing(ctx, reservationID, res.PaymentOption, res.PromoCode, quote.TotalCents, intentID); err != nil {
        return nil, err
    }
    res, err = e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    return &ReserveResult{Reservation: res, Quote: quote, Intent: intent}, nil
}

// Confirm settles a payable reservation.  It is idempotent per
// (reservation, payment reference): a repeat call observes the
// confirmed row and re-runs no side effects.  The gateway's own record
// is the authority; client-side success signals are never trusted.
func (e *Engine) Confirm(ctx context.Context, reservationID uint64, paymentRef string) (*model.Reservation, error) {
    res, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.Status == model.StatusConfirmed {
        if res.PaymentRef != nil && *res.PaymentRef == paymentRef {
            return res, nil
        }
        return nil, ErrIntegrity
    }
    if res.Terminal() {
        return nil, ErrIntegrity
    }
    if res.PaymentIntentID == nil || *res.PaymentIntentID != paymentRef {
        // Confirm against a replaced or unknown intent.
        return nil, ErrIntegrity
    }

    off, err := e.store.GetOffering(ctx, res.OfferingID)
    if err != nil {
        return nil, err
    }
    // The amount due must still match a fresh quote; a drifted price
    // forces a re-quote instead of accepting payment against it.
    promo := ""
    if res.PromoCode != nil {
        promo = *res.PromoCode
    }
    quote, qerr := e.quoter.Quote(ctx, off, res.PaymentOption, promo)
    if qerr != nil {
        var pe *pricing.PromoError
        if errors.As(qerr, &pe) {
            // The applied code no longer validates; the total the
            // purchaser is paying is stale.
            return nil, ErrStaleQuote
        }
        // Transient quoting failure: the frozen amount still governs.
    } else if quote.TotalCents != res.AmountDueCents {
        return nil, ErrStaleQuote
    }

    status, err := e.gateway.GetIntentStatus(ctx, *res.PaymentIntentID)
    if err != nil {
        return nil, err
    }
    switch status {
    case payment.IntentSucceeded:
        // fall through to the flip
    case payment.IntentFailed:
        return nil, &payment.DeclinedError{Reason: "card declined"}
    case payment.IntentRequiresAction:
        return nil, ErrPaymentRequiresAction
    default:
        // cancelled or unknown: this intent can never settle
        return nil, ErrIntegrity
    }

    confirmed, first, err := e.store.ConfirmOnce(ctx, reservationID, paymentRef)
    if err != nil {
        return nil, err
    }
    if first {
        e.invalidate(ctx, off.ID)
        e.notifyConfirmed(ctx, confirmed, off)
    }
    return confirmed, nil
}

// ConfirmFree settles a zero-total reservation without ever contacting
// the gateway.  Same idempotency rule as Confirm.
func (e *Engine) ConfirmFree(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    res, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.Status == model.StatusConfirmed {
        if res.PaymentRef != nil && *res.PaymentRef == freePaymentRef {
            return res, nil
        }
        return nil, ErrIntegrity
    }
    if res.Terminal() {
        return nil, ErrIntegrity
    }
    if res.AmountDueCents != 0 || res.PaymentIntentID != nil {
        return nil, ErrIntegrity
    }
    off, err := e.store.GetOffering(ctx, res.OfferingID)
    if err != nil {
        return nil, err
    }
    confirmed, first, err := e.store.ConfirmOnce(ctx, reservationID, freePaymentRef)
    if err != nil {
        return nil, err
    }
    if first {
        e.invalidate(ctx, off.ID)
        e.notifyConfirmed(ctx, confirmed, off)
    }
    return confirmed, nil
}

// freePaymentRef marks confirmations that settled without a gateway
// intent.
const freePaymentRef = "free"

// Cancel releases a non-terminal reservation and voids its intent.
func (e *Engine) Cancel(ctx context.Context, reservationID uint64) error {
    res, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return err
    }
    if res.Terminal() {
        return ErrIntegrity
    }
    if res.PaymentIntentID != nil {
        if err := e.gateway.CancelIntent(ctx, *res.PaymentIntentID); err != nil && !errors.Is(err, payment.ErrIntentNotFound) {
            log.Printf("checkout: cancel intent %s: %v", *res.PaymentIntentID, err)
        }
    }
    if err := e.store.Release(ctx, reservationID); err != nil {
        return err
    }
    e.invalidate(ctx, res.OfferingID)
    return nil
}

// JoinWaitlist creates a waitlist entry directly, without a draft.
// The offering must actually be full; otherwise the purchaser belongs
// on the normal reserve path.
func (e *Engine) JoinWaitlist(ctx context.Context, offeringID, userID uint64, notes string) (*model.WaitlistEntry, error) {
    off, err := e.store.GetOffering(ctx, offeringID)
    if err != nil {
        return nil, err
    }
    spots, err := e.store.AvailableSpots(ctx, offeringID)
    if err != nil {
        return nil, err
    }
    if spots > 0 {
        return nil, ErrSpotsAvailable
    }
    entry := &model.WaitlistEntry{OfferingID: offeringID, UserID: userID, Notes: notes}
    if err := e.store.CreateWaitlistEntry(ctx, entry); err != nil {
        return nil, err
    }
    e.notifyWaitlisted(ctx, entry, off)
    return entry, nil
}

// AvailableSpots exposes the ledger count for catalog displays.
func (e *Engine) AvailableSpots(ctx context.Context, offeringID uint64) (int, error) {
    return e.store.AvailableSpots(ctx, offeringID)
}

// ReapAbandoned releases DRAFT and PENDING_PAYMENT reservations older
// than the window, voiding their intents, and returns how many were
// released.  Waitlist promotion stays manual.
func (e *Engine) ReapAbandoned(ctx context.Context, window time.Duration) (int, error) {
    cutoff := time.Now().UTC().Add(-window)
    stale, err := e.store.ListAbandoned(ctx, cutoff)
    if err != nil {
        return 0, err
    }
    reaped := 0
    for i := range stale {
        res := &stale[i]
        if res.PaymentIntentID != nil {
            if err := e.gateway.CancelIntent(ctx, *res.PaymentIntentID); err != nil && !errors.Is(err, payment.ErrIntentNotFound) {
                log.Printf("checkout: reap cancel intent %s: %v", *res.PaymentIntentID, err)
            }
        }
        if err := e.store.Release(ctx, res.ID); err != nil {
            log.Printf("checkout: reap release reservation %d: %v", res.ID, err)
            continue
        }
        e.invalidate(ctx, res.OfferingID)
        reaped++
    }
    return reaped, nil
}

// waitlist is the sold-out branch of QuoteAndReserve: the draft ends
// WAITLISTED, a waitlist entry is created and the event published.
func (e *Engine) waitlist(ctx context.Context, reservationID uint64, off *model.Offering) (*ReserveResult, error) {
    if err := e.store.MarkWaitlisted(ctx, reservationID); err != nil {
        return nil, err
    }
    res, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    entry := &model.WaitlistEntry{OfferingID: off.ID, UserID: res.UserID}
    if err := e.store.CreateWaitlistEntry(ctx, entry); err != nil {
        return nil, err
    }
    e.notifyWaitlisted(ctx, entry, off)
    return &ReserveResult{Reservation: res, Waitlisted: true}, nil
}

func (e *Engine) notifyConfirmed(ctx context.Context, res *model.Reservation, off *model.Offering) {
    if e.notifier == nil {
        return
    }
    if err := e.notifier.EnrollmentConfirmed(ctx, res, off); err != nil {
        log.Printf("checkout: publish confirmed event for reservation %d: %v", res.ID, err)
    }
}

func (e *Engine) notifyWaitlisted(ctx context.Context, entry *model.WaitlistEntry, off *model.Offering) {
    if e.notifier == nil {
        return
    }
    if err := e.notifier.WaitlistJoined(ctx, entry, off); err != nil {
        log.Printf("checkout: publish waitlist event for offering %d: %v", off.ID, err)
    }
}

func (e *Engine) invalidate(ctx context.Context, offeringID uint64) {
    if e.cache != nil {
        e.cache.Invalidate(ctx, offeringID)
    }
}

func intentMetadata(res *model.Reservation, off *model.Offering) map[string]string {
    return map[string]string{
        "reservation_id": strconv.FormatUint(res.ID, 10),
        "offering_id":    strconv.FormatUint(off.ID, 10),
        "offering_kind":  off.Kind,
    }
}
