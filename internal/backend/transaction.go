package backend

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
)

// sink is the oneshot landing spot for one outstanding transaction.
type sink struct {
	ch       chan *Envelope
	deadline time.Time
	timeout  apperr.Kind // kind reported if the deadline passes unanswered
}

// registry is the transaction_id -> sink correlation table of spec §4.3,
// plus a watchdog that fails entries past their deadline.
type registry struct {
	mu      sync.Mutex
	entries map[string]*sink
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*sink)}
}

// register opens a new transaction, returning its id and the channel its
// response (or a nil envelope from the watchdog sweep) will arrive on.
func (r *registry) register(timeout time.Duration, kind apperr.Kind) (string, <-chan *Envelope) {
	txn := uuid.NewString()
	ch := make(chan *Envelope, 1)
	r.mu.Lock()
	r.entries[txn] = &sink{ch: ch, deadline: time.Now().Add(timeout), timeout: kind}
	r.mu.Unlock()
	return txn, ch
}

// resolve demultiplexes a backend response into its waiting sink, if any.
// Returns false if the transaction is unknown (already timed out, or the
// response carries no transaction id and must be dispatched as an event).
func (r *registry) resolve(txn string, env *Envelope) bool {
	r.mu.Lock()
	s, ok := r.entries[txn]
	if ok {
		delete(r.entries, txn)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.ch <- env
	close(s.ch)
	return true
}

// abandon removes a transaction without delivering a response, used when
// the caller stops waiting: marshal or write failure, context cancellation,
// or the connection closing (spec §5 "cancellation propagates by
// dropping the task handle, which drops the transaction sink").
func (r *registry) abandon(txn string) {
	r.mu.Lock()
	delete(r.entries, txn)
	r.mu.Unlock()
}

// sweep fails every entry whose deadline has passed, delivering a nil
// envelope so the waiting caller unblocks with
// backend_request_timed_out. Called by the watchdog ticker.
func (r *registry) sweep(now time.Time) {
	r.mu.Lock()
	var expired []*sink
	for txn, s := range r.entries {
		if now.After(s.deadline) {
			expired = append(expired, s)
			delete(r.entries, txn)
		}
	}
	r.mu.Unlock()
	for _, s := range expired {
		s.ch <- nil
		close(s.ch)
	}
}

// watchdog runs registry.sweep on a ticker until stop is closed (spec
// §4.3 "a watchdog... fails entries past default_timeout").
func (r *registry) watchdog(period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}
