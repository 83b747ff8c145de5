// Package checkout implements the order/enrollment engine: the
// capacity ledger, the reservation state machine and the waitlist
// fallback.  The same engine backs class registration, online-course
// enrollment and store checkout; each purchase type only differs in
// the offering it points at.
package checkout

import (
    "errors"
    "fmt"
    "sort"
    "strings"
)

// ErrSoldOut is returned by the store when a reservation races for a
// spot that no longer exists.  It is a normal outcome, not a failure:
// the engine routes it to the waitlist.
var ErrSoldOut = errors.New("sold out")

// ErrStaleQuote means the amount the purchaser is about to pay no
// longer matches the current quote.  The caller must re-quote before
// confirmation can proceed.
var ErrStaleQuote = errors.New("stale quote")

// ErrIntegrity marks a transition that must never happen, such as
// confirming against a replaced intent or a cancelled reservation.
// It is fatal to the call and is not retried.
var ErrIntegrity = errors.New("integrity violation")

// ErrPaymentRequiresAction means the gateway has not reached a
// terminal state for the intent yet.  The purchaser may retry.
var ErrPaymentRequiresAction = errors.New("payment requires further action")

// ErrSpotsAvailable is returned by JoinWaitlist when the offering
// still has capacity; the purchaser should go through the normal
// reserve path instead.
var ErrSpotsAvailable = errors.New("offering still has available spots")

// ErrNotFound is returned when a referenced reservation or offering
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by Accounts.Create when the email is
// already registered.  The engine surfaces it as a field-scoped
// validation error on the email field.
var ErrEmailExists = errors.New("email already exists")

// ValidationError carries field-scoped, purchaser-recoverable
// problems.  Keys are field names, values are actionable messages.
type ValidationError map[string]string

func (v ValidationError) Error() string {
    fields := make([]string, 0, len(v))
    for f := range v {
        fields = append(fields, f)
    }
    sort.Strings(fields)
    return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}
