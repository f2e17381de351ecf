// Package subs owns every live push-event channel. Conversations are opened
// and closed only through the Manager, which guarantees at most one
// subscription per conversation id and routes inbound events into the store.
package subs

import (
	"context"
	"sync"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/bus"
	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/store"
	"go.uber.org/zap"
)

// State represents a conversation's subscription lifecycle state.
type State string

const (
	Unsubscribed State = "UNSUBSCRIBED"
	Subscribing  State = "SUBSCRIBING"
	Subscribed   State = "SUBSCRIBED"
)

// Manager tracks one subscription per open conversation.
type Manager struct {
	mu         sync.Mutex
	store      *store.Store
	subscriber remote.Subscriber
	bus        *bus.Bus
	logger     *zap.Logger
	entries    map[string]*entry
}

type entry struct {
	state State
	sub   remote.Subscription
	// ready is closed when the in-flight subscribe attempt resolves.
	// Concurrent Open calls wait on it instead of issuing a second
	// subscribe for the same conversation.
	ready chan struct{}
	err   error
}

// NewManager creates a subscription manager.
func NewManager(st *store.Store, subscriber remote.Subscriber, b *bus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      st,
		subscriber: subscriber,
		bus:        b,
		logger:     logger,
		entries:    make(map[string]*entry),
	}
}

// Open subscribes the conversation to push events. Idempotent: an already
// subscribed conversation is a no-op, and a call racing an in-flight
// attempt attaches to that attempt rather than subscribing again.
func (m *Manager) Open(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	if e, ok := m.entries[conversationID]; ok {
		switch e.state {
		case Subscribed:
			m.mu.Unlock()
			return nil
		case Subscribing:
			ready := e.ready
			m.mu.Unlock()
			select {
			case <-ready:
			case <-ctx.Done():
				return ctx.Err()
			}
			m.mu.Lock()
			err := e.err
			m.mu.Unlock()
			return err
		}
	}

	e := &entry{state: Subscribing, ready: make(chan struct{})}
	m.entries[conversationID] = e
	m.mu.Unlock()
	m.publishState(conversationID, Subscribing)

	sub, err := m.subscriber.Subscribe(ctx, conversationID, func(evt remote.Event) {
		m.handleEvent(conversationID, evt)
	})

	m.mu.Lock()
	if err != nil {
		if m.entries[conversationID] == e {
			delete(m.entries, conversationID)
		}
		e.err = err
		close(e.ready)
		m.mu.Unlock()
		m.publishState(conversationID, Unsubscribed)
		m.logger.Warn("subscribe failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return err
	}
	if m.entries[conversationID] != e {
		// Closed while the subscribe call was in flight; tear the fresh
		// channel down instead of resurrecting the subscription.
		close(e.ready)
		m.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	e.state = Subscribed
	e.sub = sub
	close(e.ready)
	m.mu.Unlock()

	m.publishState(conversationID, Subscribed)
	m.logger.Info("subscribed", zap.String("conversation_id", conversationID))
	return nil
}

// Close unsubscribes the conversation and releases its channel. Safe to call
// for conversations that were never opened.
func (m *Manager) Close(conversationID string) error {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.entries, conversationID)
	sub := e.sub
	m.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	m.publishState(conversationID, Unsubscribed)
	m.logger.Info("unsubscribed", zap.String("conversation_id", conversationID))
	return err
}

// CloseAll unsubscribes every open conversation. Called on logout so no
// channel leaks across identity changes.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Close(id); err != nil {
			m.logger.Warn("error closing subscription",
				zap.String("conversation_id", id), zap.Error(err))
		}
	}
}

// State returns the conversation's current subscription state.
func (m *Manager) State(conversationID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[conversationID]; ok {
		return e.state
	}
	return Unsubscribed
}

func (m *Manager) handleEvent(conversationID string, evt remote.Event) {
	m.mu.Lock()
	_, ok := m.entries[conversationID]
	m.mu.Unlock()
	if !ok {
		// Late delivery after Close: no handle registered, ignore.
		return
	}

	switch ev := evt.(type) {
	case remote.InsertEvent:
		applied := m.store.ReconcileConfirmed(conversationID, "", ev.Message)
		if applied {
			m.store.IncrementUnread(conversationID, ev.Message.SenderID)
		}
	case remote.ReadReceiptEvent:
		m.store.ApplyReadReceipt(conversationID, ev.MessageID, ev.ViewedAt)
	case remote.ChannelClosedEvent:
		m.handleLost(conversationID, ev.Err)
	}
}

func (m *Manager) handleLost(conversationID string, cause error) {
	m.mu.Lock()
	if _, ok := m.entries[conversationID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.entries, conversationID)
	m.mu.Unlock()

	m.logger.Warn("subscription lost",
		zap.String("conversation_id", conversationID), zap.Error(cause))
	m.publishState(conversationID, Unsubscribed)
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:           bus.KindSubscriptionLost,
			ConversationID: conversationID,
			Timestamp:      time.Now(),
			Payload:        cause,
		})
	}
}

func (m *Manager) publishState(conversationID string, to State) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{
		Kind:           bus.KindSubscriptionState,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		Payload:        to,
	})
}
