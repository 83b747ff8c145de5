package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxIntentLifecycle(t *testing.T) {
	g := NewSandboxGateway()
	ctx := context.Background()

	in, err := g.CreateIntent(ctx, 10000, "USD", map[string]string{"reservation_id": "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, in.ID)
	assert.NotEmpty(t, in.ClientSecret)

	// New intents await the purchaser's action.
	status, err := g.GetIntentStatus(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, IntentRequiresAction, status)

	require.True(t, g.Settle(in.ID, IntentSucceeded))
	status, err = g.GetIntentStatus(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, IntentSucceeded, status)

	// A succeeded intent cannot be voided afterwards.
	require.NoError(t, g.CancelIntent(ctx, in.ID))
	status, err = g.GetIntentStatus(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, IntentSucceeded, status)
}

func TestSandboxCancelPending(t *testing.T) {
	g := NewSandboxGateway()
	ctx := context.Background()

	in, err := g.CreateIntent(ctx, 2500, "USD", nil)
	require.NoError(t, err)
	require.NoError(t, g.CancelIntent(ctx, in.ID))

	status, err := g.GetIntentStatus(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, IntentCancelled, status)
}

func TestSandboxUnknownIntent(t *testing.T) {
	g := NewSandboxGateway()
	ctx := context.Background()

	_, err := g.GetIntentStatus(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrIntentNotFound)
	assert.ErrorIs(t, g.CancelIntent(ctx, "pi_missing"), ErrIntentNotFound)
	assert.False(t, g.Settle("pi_missing", IntentSucceeded))
}
