package payment

import (
    "context"
    "sync"

    "github.com/google/uuid"
)

// SandboxGateway is an in-process gateway used in development and
// tests.  Intents start in requires_action; the test harness (or a dev
// endpoint) settles them with Settle.  It is safe for concurrent use.
type SandboxGateway struct {
    mu      sync.Mutex
    intents map[string]*sandboxIntent
}

type sandboxIntent struct {
    intent Intent
    status string
}

// NewSandboxGateway returns an empty sandbox gateway.
func NewSandboxGateway() *SandboxGateway {
    return &SandboxGateway{intents: make(map[string]*sandboxIntent)}
}

// CreateIntent registers a new intent with a random id and secret.
func (g *SandboxGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    in := Intent{
        ID:           "pi_" + uuid.NewString(),
        ClientSecret: "secret_" + uuid.NewString(),
        AmountCents:  amountCents,
        Currency:     currency,
    }
    g.intents[in.ID] = &sandboxIntent{intent: in, status: IntentRequiresAction}
    return &in, nil
}

// GetIntentStatus reports the stored status for the intent.
func (g *SandboxGateway) GetIntentStatus(ctx context.Context, intentID string) (string, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    si, ok := g.intents[intentID]
    if !ok {
        return "", ErrIntentNotFound
    }
    return si.status, nil
}

// CancelIntent voids an intent unless it already succeeded.
func (g *SandboxGateway) CancelIntent(ctx context.Context, intentID string) error {
    g.mu.Lock()
    defer g.mu.Unlock()
    si, ok := g.intents[intentID]
    if !ok {
        return ErrIntentNotFound
    }
    if si.status != IntentSucceeded {
        si.status = IntentCancelled
    }
    return nil
}

// Settle forces an intent into the given status.  Used by tests and
// the sandbox payment page to simulate card outcomes.
func (g *SandboxGateway) Settle(intentID, status string) bool {
    g.mu.Lock()
    defer g.mu.Unlock()
    si, ok := g.intents[intentID]
    if !ok {
        return false
    }
    si.status = status
    return true
}
