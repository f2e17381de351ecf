// Package remote defines the boundary between the sync engine and the
// backend: the remote calls the engine consumes, the events the push
// transport delivers, and the error taxonomy surfaced to callers. The
// engine works against these interfaces only; internal/realtime provides
// the bundled implementation.
package remote

import (
	"context"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/store"
)

// Ack is the server's confirmation of a sent message.
type Ack struct {
	ID        int64
	CreatedAt time.Time
}

// Client covers the request/response calls the engine makes.
type Client interface {
	// SendMessage delivers a text message and returns the server-assigned
	// id and timestamp.
	SendMessage(ctx context.Context, conversationID, text string) (Ack, error)

	// FetchMessages returns up to limit messages for a conversation in
	// ascending creation order (newest last).
	FetchMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error)

	// MarkViewed marks the conversation's inbound messages viewed by the
	// local user.
	MarkViewed(ctx context.Context, conversationID string) error

	// FetchUnreadTotal returns the authoritative total unread count.
	FetchUnreadTotal(ctx context.Context) (int, error)
}

// Subscription is a live push-event channel for one conversation.
type Subscription interface {
	// Unsubscribe tears the channel down. After it returns no further
	// events are delivered to the callback.
	Unsubscribe() error
}

// Subscriber opens push-event channels. One subscription per conversation;
// enforcing that is the subscription manager's job, not the transport's.
type Subscriber interface {
	Subscribe(ctx context.Context, conversationID string, onEvent func(Event)) (Subscription, error)
}
