// Package batch tracks pre-paid call bundles: a batch is issued once a
// batch-priced payment settles, then debited one call at a time until it is
// depleted or its TTL expires.
package batch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cedrospay/x402-gateway/internal/metrics"
)

// ErrNotFound is returned when a batch id has no entry in the ledger.
var ErrNotFound = errors.New("batch: not found")

// ErrDepleted is returned when a batch has no calls remaining.
var ErrDepleted = errors.New("batch: depleted")

// ErrExpired is returned when a batch has passed its TTL.
var ErrExpired = errors.New("batch: expired")

// entry is a single batch; mu guards callsRemaining so concurrent debits
// against the SAME batch serialize without blocking debits against other
// batches.
type entry struct {
	mu             sync.Mutex
	id             string
	totalCalls     int64
	callsRemaining int64
	amountPaid     float64
	createdAt      time.Time
	expiresAt      time.Time
}

func (e *entry) isExpiredAt(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Descriptor is the external, copy-out view of a batch.
type Descriptor struct {
	BatchID        string
	TotalCalls     int64
	CallsRemaining int64
	AmountPaid     float64
	ExpiresAt      time.Time
}

// Ledger holds all active batches. The map shape (insert/delete) is guarded
// by mu; in-flight call-count mutation on one batch never blocks access to
// another batch's entry.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	metrics *metrics.Metrics

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an empty ledger with the given default TTL for issued batches.
func New(ttl time.Duration, m *metrics.Metrics) *Ledger {
	return &Ledger{
		entries: make(map[string]*entry),
		ttl:     ttl,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
}

// StartSweep launches the periodic expired-batch reclaim loop, running on
// interval until ctx is cancelled or StopSweep is called.
func (l *Ledger) StartSweep(ctx context.Context, interval time.Duration) {
	l.wg.Add(1)
	go l.sweepLoop(ctx, interval)
}

// StopSweep signals the sweep loop to stop and waits for it to exit.
func (l *Ledger) StopSweep() {
	close(l.stopCh)
	l.wg.Wait()
}

func (l *Ledger) sweepLoop(ctx context.Context, interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweepExpired()
		}
	}
}

// sweepExpired deletes every batch past its TTL, reporting one
// ObserveBatchExpired per reclaimed batch and republishing the aggregate
// remaining-calls gauge.
func (l *Ledger) sweepExpired() {
	now := time.Now()

	l.mu.Lock()
	var reclaimed int
	for id, e := range l.entries {
		e.mu.Lock()
		expired := e.isExpiredAt(now)
		e.mu.Unlock()
		if expired {
			delete(l.entries, id)
			reclaimed++
		}
	}
	l.mu.Unlock()

	if l.metrics != nil {
		for i := 0; i < reclaimed; i++ {
			l.metrics.ObserveBatchExpired()
		}
		if reclaimed > 0 {
			l.metrics.SetBatchCallsRemaining(l.sumCallsRemaining())
		}
	}
}

// Issue creates a new batch with calls call credits paid for at price, and
// returns its descriptor.
func (l *Ledger) Issue(calls int64, price float64) (Descriptor, error) {
	if calls <= 0 {
		return Descriptor{}, fmt.Errorf("batch: calls must be positive, got %d", calls)
	}

	id, err := generateBatchID()
	if err != nil {
		return Descriptor{}, fmt.Errorf("generate batch id: %w", err)
	}

	now := time.Now()
	e := &entry{
		id:             id,
		totalCalls:     calls,
		callsRemaining: calls,
		amountPaid:     price,
		createdAt:      now,
		expiresAt:      now.Add(l.ttl),
	}

	l.mu.Lock()
	l.entries[id] = e
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.ObserveBatchIssued()
		l.metrics.SetBatchCallsRemaining(l.sumCallsRemaining())
	}

	return descriptorOf(e), nil
}

// TryDebit atomically checks and decrements one call from batchID. It fails
// with ErrNotFound, ErrExpired, or ErrDepleted without mutating state.
func (l *Ledger) TryDebit(batchID string) (Descriptor, error) {
	l.mu.RLock()
	e, ok := l.entries[batchID]
	l.mu.RUnlock()
	if !ok {
		if l.metrics != nil {
			l.metrics.ObserveBatchDebit("not_found")
		}
		return Descriptor{}, ErrNotFound
	}

	e.mu.Lock()
	if e.isExpiredAt(time.Now()) {
		e.mu.Unlock()
		if l.metrics != nil {
			l.metrics.ObserveBatchDebit("expired")
		}
		return Descriptor{}, ErrExpired
	}
	if e.callsRemaining <= 0 {
		e.mu.Unlock()
		if l.metrics != nil {
			l.metrics.ObserveBatchDebit("depleted")
		}
		return Descriptor{}, ErrDepleted
	}

	e.callsRemaining--
	desc := descriptorOf(e)
	e.mu.Unlock()

	if l.metrics != nil {
		l.metrics.ObserveBatchDebit("success")
		l.metrics.SetBatchCallsRemaining(l.sumCallsRemaining())
	}

	return desc, nil
}

// sumCallsRemaining aggregates callsRemaining across all live (non-expired)
// batches for the gauge metric. Called with no entry lock held by the
// caller; it takes its own per-entry lock while summing.
func (l *Ledger) sumCallsRemaining() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	var total int64
	for _, e := range l.entries {
		e.mu.Lock()
		if !e.isExpiredAt(now) {
			total += e.callsRemaining
		}
		e.mu.Unlock()
	}
	return total
}

// Get returns a copy of batchID's current descriptor.
func (l *Ledger) Get(batchID string) (Descriptor, error) {
	l.mu.RLock()
	e, ok := l.entries[batchID]
	l.mu.RUnlock()
	if !ok {
		return Descriptor{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return descriptorOf(e), nil
}

func descriptorOf(e *entry) Descriptor {
	return Descriptor{
		BatchID:        e.id,
		TotalCalls:     e.totalCalls,
		CallsRemaining: e.callsRemaining,
		AmountPaid:     e.amountPaid,
		ExpiresAt:      e.expiresAt,
	}
}

func generateBatchID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "batch_" + hex.EncodeToString(b), nil
}
