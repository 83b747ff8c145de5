// Package payment defines the narrow contract to the external payment
// processor.  Card collection, 3-D Secure and the confirmation UI are
// entirely client-side; the checkout engine only creates intents and
// re-validates their terminal status server-side before committing a
// reservation.
package payment

import (
    "context"
    "errors"
)

// Terminal and non-terminal intent statuses reported by the gateway.
const (
    IntentSucceeded      = "succeeded"
    IntentFailed         = "failed"
    IntentRequiresAction = "requires_action"
    IntentCancelled      = "cancelled"
)

// ErrIntentNotFound is returned when the gateway has no record of the
// referenced intent.
var ErrIntentNotFound = errors.New("payment intent not found")

// ErrGatewayUnavailable signals a transient transport failure talking
// to the processor.  Callers may retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// DeclinedError carries the processor's own decline reason.  It is the
// one gateway failure whose message is passed through to the purchaser.
type DeclinedError struct {
    Reason string
}

func (e *DeclinedError) Error() string { return "payment declined: " + e.Reason }

// Intent is a processor-side object representing an authorized charge
// attempt.  The client secret is handed to the browser SDK; the id is
// stored on the reservation.
type Intent struct {
    ID           string `json:"id"`
    ClientSecret string `json:"client_secret"`
    AmountCents  int64  `json:"amount_cents"`
    Currency     string `json:"currency"`
}

// Gateway is the adapter interface to the payment processor.
type Gateway interface {
    // CreateIntent registers a charge attempt for the given amount and
    // returns the intent id and client secret.
    CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
    // GetIntentStatus returns the processor's current status for an
    // intent.  Confirmation must rely on this, never on client signals.
    GetIntentStatus(ctx context.Context, intentID string) (string, error)
    // CancelIntent voids an intent that will not be completed, e.g.
    // after a re-quote replaced it or a reservation was reaped.
    CancelIntent(ctx context.Context, intentID string) error
}
