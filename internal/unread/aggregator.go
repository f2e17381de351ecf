// Package unread derives the total unread badge count. The cached value is
// advisory; the remote store stays authoritative and a periodic reconcile
// heals any drift.
package unread

import (
	"context"
	"sync"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/bus"
	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/store"
	"go.uber.org/zap"
)

// Aggregator caches the total unread count across all conversations.
type Aggregator struct {
	store    *store.Store
	client   remote.Client
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc

	mu    sync.RWMutex
	total int
}

// NewAggregator creates an aggregator. interval controls the periodic remote
// reconcile; zero disables it.
func NewAggregator(st *store.Store, client remote.Client, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:    st,
		client:   client,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Total returns the cached total unread count.
func (a *Aggregator) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

// Snapshot returns the derived per-conversation counts plus the total.
func (a *Aggregator) Snapshot() store.UnreadSnapshot {
	per := a.store.UnreadCounts()
	total := 0
	for _, n := range per {
		total += n
	}
	return store.UnreadSnapshot{Total: total, PerConversation: per}
}

// RefreshTotal recomputes the total from the store's counters and publishes
// a change event when the value moved.
func (a *Aggregator) RefreshTotal() int {
	total := 0
	for _, n := range a.store.UnreadCounts() {
		total += n
	}

	a.mu.Lock()
	changed := a.total != total
	a.total = total
	a.mu.Unlock()

	if changed && a.bus != nil {
		a.bus.Publish(bus.Event{
			Kind:      bus.KindUnreadTotal,
			Timestamp: time.Now(),
			Payload:   total,
		})
	}
	return total
}

// ReconcileRemote queries the authoritative unread total and adopts it when
// it disagrees with the local cache.
func (a *Aggregator) ReconcileRemote(ctx context.Context) (int, error) {
	authoritative, err := a.client.FetchUnreadTotal(ctx)
	if err != nil {
		return a.Total(), err
	}

	a.mu.Lock()
	drift := a.total != authoritative
	prev := a.total
	a.total = authoritative
	a.mu.Unlock()

	if drift {
		a.logger.Info("unread drift reconciled",
			zap.Int("cached", prev), zap.Int("authoritative", authoritative))
		if a.bus != nil {
			a.bus.Publish(bus.Event{
				Kind:      bus.KindUnreadTotal,
				Timestamp: time.Now(),
				Payload:   authoritative,
			})
		}
	}
	return authoritative, nil
}

// Start begins refreshing on conversation events and reconciling against
// the remote on the configured interval.
func (a *Aggregator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	ch, unsub := a.bus.Subscribe("conversation.", 256)

	go func() {
		defer unsub()
		var tick <-chan time.Time
		if a.interval > 0 {
			ticker := time.NewTicker(a.interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ch:
				a.RefreshTotal()
			case <-tick:
				if _, err := a.ReconcileRemote(ctx); err != nil {
					a.logger.Warn("unread reconcile failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the refresh loop.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}
