package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/backend/internal/apperr"
)

func TestRegistry_ResolveDeliversToWaitingSink(t *testing.T) {
	r := newRegistry()
	txn, ch := r.register(time.Second, apperr.KindBackendRequestTimedOut)

	env := &Envelope{Janus: "success", Transaction: txn}
	ok := r.resolve(txn, env)
	require.True(t, ok)

	got := <-ch
	assert.Same(t, env, got)
}

func TestRegistry_ResolveUnknownTransactionIsNoop(t *testing.T) {
	r := newRegistry()
	ok := r.resolve("does-not-exist", &Envelope{})
	assert.False(t, ok)
}

func TestRegistry_SweepFailsExpiredEntries(t *testing.T) {
	r := newRegistry()
	_, ch := r.register(-time.Second, apperr.KindBackendRequestTimedOut) // already past deadline

	r.sweep(time.Now())

	got := <-ch
	assert.Nil(t, got)
}

func TestRegistry_AbandonDropsSinkSilently(t *testing.T) {
	r := newRegistry()
	txn, _ := r.register(time.Second, apperr.KindBackendRequestTimedOut)
	r.abandon(txn)

	ok := r.resolve(txn, &Envelope{})
	assert.False(t, ok)
}
