package store

import "time"

// Status tracks the delivery state of a message.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// ContentType identifies the kind of content a message carries.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
)

// Message is one entry in a conversation. A message created by an optimistic
// send has ID == 0 and a non-empty TempID until the server confirms it; the
// two identifier spaces never overlap. TempID is retained after confirmation
// so a late acknowledgement can still find its entry.
type Message struct {
	ID             int64
	TempID         string
	ConversationID string
	SenderID       string
	SenderName     string
	ContentType    ContentType
	Text           string
	CreatedAt      time.Time
	ViewedAt       time.Time
	IsOwn          bool
	Status         Status
}

// Viewed reports whether the message has been marked viewed.
func (m Message) Viewed() bool {
	return !m.ViewedAt.IsZero()
}

// Conversation holds per-conversation metadata derived from its messages.
type Conversation struct {
	ID           string
	UnreadCount  int
	LastPreview  string
	LastActivity time.Time
}

// UnreadSnapshot is a derived, advisory view of unread counts. The remote
// store stays authoritative; this is a cache with eventual consistency.
type UnreadSnapshot struct {
	Total           int
	PerConversation map[string]int
}
