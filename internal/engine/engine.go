// Package engine is the entry point of the sync engine: a facade over the
// conversation store, send coordinator, subscription manager, and unread
// aggregator, plus the fx module that composes them.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/send"
	"github.com/BrooksPoltl/snapsync/internal/store"
	"github.com/BrooksPoltl/snapsync/internal/subs"
	"github.com/BrooksPoltl/snapsync/internal/unread"
	"go.uber.org/zap"
)

// Engine exposes the operations the UI layer consumes.
type Engine struct {
	store       *store.Store
	coordinator *send.Coordinator
	subs        *subs.Manager
	aggregator  *unread.Aggregator
	client      remote.Client
	logger      *zap.Logger
	fetchLimit  int
}

// NewEngine assembles the facade from its parts.
func NewEngine(
	st *store.Store,
	coordinator *send.Coordinator,
	manager *subs.Manager,
	aggregator *unread.Aggregator,
	client remote.Client,
	logger *zap.Logger,
	fetchLimit int,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:       st,
		coordinator: coordinator,
		subs:        manager,
		aggregator:  aggregator,
		client:      client,
		logger:      logger,
		fetchLimit:  fetchLimit,
	}
}

// Open subscribes the conversation to push events and catches up on
// messages that landed while it was closed. Idempotent; a second Open while
// subscribed just re-runs the catch-up.
func (e *Engine) Open(ctx context.Context, conversationID string) error {
	e.store.GetOrCreate(conversationID)
	if err := e.subs.Open(ctx, conversationID); err != nil {
		return fmt.Errorf("open %s: %w", conversationID, err)
	}
	if err := e.backfill(ctx, conversationID); err != nil {
		// The push channel is live; history arrives on the next catch-up.
		e.logger.Warn("catch-up fetch failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return nil
}

// backfill merges fetched history into the store. Reconcile handles
// duplicates and out-of-order rows, so replaying overlap is harmless.
func (e *Engine) backfill(ctx context.Context, conversationID string) error {
	msgs, err := e.client.FetchMessages(ctx, conversationID, e.fetchLimit)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		e.store.ReconcileConfirmed(conversationID, "", m)
	}
	return nil
}

// Close releases the conversation's subscription. Messages sent while the
// conversation is closed still land in the store when it is reopened.
func (e *Engine) Close(conversationID string) error {
	return e.subs.Close(conversationID)
}

// CloseAll releases every subscription.
func (e *Engine) CloseAll() {
	e.subs.CloseAll()
}

// Send performs an optimistic send. See send.Coordinator.Send.
func (e *Engine) Send(ctx context.Context, conversationID, text string) (string, error) {
	return e.coordinator.Send(ctx, conversationID, text)
}

// Retry re-sends the text of a failed message. See send.Coordinator.Retry.
func (e *Engine) Retry(ctx context.Context, conversationID, tempID string) (string, error) {
	return e.coordinator.Retry(ctx, conversationID, tempID)
}

// MarkRead zeroes the conversation's unread count locally, then tells the
// backend. The local zero sticks even when the remote call fails; the
// periodic unread reconcile heals any drift.
func (e *Engine) MarkRead(ctx context.Context, conversationID string) error {
	e.store.MarkRead(conversationID, time.Now())
	if err := e.client.MarkViewed(ctx, conversationID); err != nil {
		e.logger.Warn("mark viewed failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return err
	}
	return nil
}

// Snapshot returns a copy of the conversation's messages for rendering.
func (e *Engine) Snapshot(conversationID string) []store.Message {
	return e.store.Snapshot(conversationID)
}

// Conversations returns conversation metadata, most recent first.
func (e *Engine) Conversations() []store.Conversation {
	return e.store.Conversations()
}

// SubscriptionState returns the conversation's subscription state.
func (e *Engine) SubscriptionState(conversationID string) subs.State {
	return e.subs.State(conversationID)
}

// UnreadTotal returns the cached total unread count.
func (e *Engine) UnreadTotal() int {
	return e.aggregator.Total()
}

// Unread returns the derived unread snapshot.
func (e *Engine) Unread() store.UnreadSnapshot {
	return e.aggregator.Snapshot()
}

// Reset tears everything down for an identity change: every subscription is
// closed and all local state dropped. The engine is reusable afterwards.
func (e *Engine) Reset() {
	e.subs.CloseAll()
	e.store.Reset()
	e.aggregator.RefreshTotal()
	e.logger.Info("engine reset")
}
