package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/store"
)

// frame is a phoenix-protocol websocket frame.
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// changePayload is the payload of a postgres_changes frame.
type changePayload struct {
	Data changeData `json:"data"`
}

type changeData struct {
	Type   string        `json:"type"`
	Table  string        `json:"table"`
	Record messageRecord `json:"record"`
}

// messageRecord is a row of the messages table as the backend serializes it,
// shared by the realtime payload parser and the REST client.
type messageRecord struct {
	ID             int64       `json:"id"`
	ConversationID json.Number `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	SenderUsername string      `json:"sender_username"`
	ContentType    string      `json:"content_type"`
	ContentText    string      `json:"content_text"`
	CreatedAt      time.Time   `json:"created_at"`
	ViewedAt       *time.Time  `json:"viewed_at"`
}

func (r messageRecord) toMessage(selfID string) store.Message {
	m := store.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID.String(),
		SenderID:       r.SenderID,
		SenderName:     r.SenderUsername,
		ContentType:    store.ContentType(r.ContentType),
		Text:           r.ContentText,
		CreatedAt:      r.CreatedAt,
		IsOwn:          r.SenderID == selfID,
		Status:         store.StatusSent,
	}
	if r.ContentType == "" {
		m.ContentType = store.ContentText
	}
	if r.ViewedAt != nil {
		m.ViewedAt = *r.ViewedAt
	}
	return m
}

// parseChange validates a postgres_changes payload into a typed event.
// Returns (nil, nil) for changes the engine does not care about.
func parseChange(payload json.RawMessage, selfID string) (remote.Event, error) {
	var cp changePayload
	if err := json.Unmarshal(payload, &cp); err != nil {
		return nil, fmt.Errorf("decode change payload: %w", err)
	}

	rec := cp.Data.Record
	switch cp.Data.Type {
	case "INSERT":
		if rec.ID == 0 {
			return nil, fmt.Errorf("insert without id")
		}
		return remote.InsertEvent{Message: rec.toMessage(selfID)}, nil
	case "UPDATE":
		// The only update the backend emits on messages is the read stamp.
		if rec.ViewedAt == nil {
			return nil, nil
		}
		return remote.ReadReceiptEvent{
			ConversationID: rec.ConversationID.String(),
			MessageID:      rec.ID,
			ViewedAt:       *rec.ViewedAt,
		}, nil
	default:
		return nil, nil
	}
}
