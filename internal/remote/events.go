package remote

import (
	"time"

	"github.com/BrooksPoltl/snapsync/internal/store"
)

// Event is the tagged union of payloads a subscription can deliver. The
// transport validates raw payloads into one of these before anything
// reaches the reconciliation path.
type Event interface {
	isEvent()
}

// InsertEvent carries a newly stored message.
type InsertEvent struct {
	Message store.Message
}

// ReadReceiptEvent reports that a message was viewed.
type ReadReceiptEvent struct {
	ConversationID string
	MessageID      int64
	ViewedBy       string
	ViewedAt       time.Time
}

// ChannelClosedEvent reports that the transport lost the channel. The
// subscription will deliver nothing further; the caller re-opens and
// catches up via FetchMessages.
type ChannelClosedEvent struct {
	ConversationID string
	Err            error
}

func (InsertEvent) isEvent()        {}
func (ReadReceiptEvent) isEvent()   {}
func (ChannelClosedEvent) isEvent() {}
