package bus

import (
	"strings"
	"time"
)

// Kind identifies the type of a domain event.
type Kind string

// Event kinds published by the engine. Namespaces group related kinds so
// subscribers can listen to a whole family with a single prefix.
const (
	// conversation.* — store mutations.
	KindMessageUpserted Kind = "conversation.message_upserted"
	KindUnreadChanged   Kind = "conversation.unread_changed"

	// message.* — send coordinator outcomes.
	KindSendAck    Kind = "message.send_ack"
	KindSendFailed Kind = "message.send_failed"

	// subscription.* — subscription manager lifecycle.
	KindSubscriptionState Kind = "subscription.state_changed"
	KindSubscriptionLost  Kind = "subscription.lost"

	// unread.* — aggregator updates.
	KindUnreadTotal Kind = "unread.total_changed"
)

// In reports whether the kind belongs to the given namespace. A namespace is
// any leading fragment of a kind string: "conversation." selects the whole
// family, "subscription.lost" exactly one kind, "" everything.
func (k Kind) In(namespace string) bool {
	return strings.HasPrefix(string(k), namespace)
}

// Event represents a domain event published on the bus. ConversationID is
// set for every conversation-scoped event and empty for process-wide ones.
type Event struct {
	Kind           Kind
	ConversationID string
	Timestamp      time.Time
	Payload        any
}
