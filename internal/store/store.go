package store

import (
	"sort"
	"sync"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/bus"
	"go.uber.org/zap"
)

const previewLen = 100

// Store is the single source of truth for in-memory conversation state.
// Every mutation goes through one of its methods, each of which is a single
// critical section: the mutex is the serialization point the send
// coordinator and subscription callbacks funnel through, so reconciliation
// only needs to be idempotent, not otherwise synchronized.
type Store struct {
	mu     sync.Mutex
	selfID string
	bus    *bus.Bus
	logger *zap.Logger
	convs  map[string]*conversation
}

type conversation struct {
	meta     Conversation
	messages []Message
}

// New creates an empty store for the given local user.
func New(selfID string, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		selfID: selfID,
		bus:    b,
		logger: logger,
		convs:  make(map[string]*conversation),
	}
}

// SelfID returns the local user id messages are judged "own" against.
func (s *Store) SelfID() string {
	return s.selfID
}

// GetOrCreate returns conversation metadata, creating an empty entry if
// absent. Unknown conversation ids are never an error: events for
// conversations the engine has not seen yet lazily create them.
func (s *Store) GetOrCreate(conversationID string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(conversationID).meta
}

// AppendOptimistic appends a Sending message at the tail of the list and
// returns it. The entry has no server id yet; tempID is its only identity.
func (s *Store) AppendOptimistic(conversationID, tempID, senderID, text string) Message {
	s.mu.Lock()
	c := s.getOrCreateLocked(conversationID)
	m := Message{
		TempID:         tempID,
		ConversationID: conversationID,
		SenderID:       senderID,
		ContentType:    ContentText,
		Text:           text,
		CreatedAt:      time.Now(),
		IsOwn:          true,
		Status:         StatusSending,
	}
	c.messages = append(c.messages, m)
	s.touchLocked(c, m)
	s.mu.Unlock()

	s.publishUpserted(m)
	return m
}

// ReconcileConfirmed merges a server-confirmed message into the conversation
// exactly once. It is safe to call from both the send acknowledgement path
// and the subscription path, in either order, with identical outcome:
//
//  1. A message whose server id is already present is a redelivery: dropped,
//     returns false. This check runs before any promotion so a redelivery can
//     never consume a pending entry that happens to carry the same text.
//  2. If tempID names a pending Sending entry with the same sender and text,
//     that entry is promoted in place (position preserved).
//  3. Otherwise, if the message is our own, the oldest unmatched Sending
//     entry with the same sender and text is promoted. Oldest-first keeps
//     rapid repeated sends of identical text paired with the right acks.
//  4. Otherwise the message is inserted preserving (CreatedAt, ID) order, so
//     backfill after a reconnect lands between existing entries rather than
//     at the tail.
func (s *Store) ReconcileConfirmed(conversationID, tempID string, confirmed Message) bool {
	s.mu.Lock()
	c := s.getOrCreateLocked(conversationID)

	if confirmed.ID != 0 && indexByID(c.messages, confirmed.ID) >= 0 {
		s.mu.Unlock()
		s.logger.Debug("duplicate delivery ignored",
			zap.String("conversation_id", conversationID),
			zap.Int64("msg_id", confirmed.ID))
		return false
	}

	if tempID != "" {
		if i := indexByTempID(c.messages, tempID); i >= 0 {
			m := &c.messages[i]
			if m.Status == StatusSending && m.SenderID == confirmed.SenderID && m.Text == confirmed.Text {
				s.promoteLocked(c, i, confirmed)
				out := c.messages[i]
				s.mu.Unlock()
				s.publishUpserted(out)
				return true
			}
			// Entry already resolved under a different id; treat as inbound.
		}
	}

	if confirmed.IsOwn {
		for i := range c.messages {
			m := &c.messages[i]
			if m.Status == StatusSending && m.SenderID == confirmed.SenderID && m.Text == confirmed.Text {
				s.promoteLocked(c, i, confirmed)
				out := c.messages[i]
				s.mu.Unlock()
				s.publishUpserted(out)
				return true
			}
		}
	}

	confirmed.ConversationID = conversationID
	confirmed.Status = StatusSent
	s.insertOrderedLocked(c, confirmed)
	s.touchLocked(c, confirmed)
	s.mu.Unlock()

	s.publishUpserted(confirmed)
	return true
}

// MarkFailed transitions a pending Sending entry to Failed. No-op if the
// entry was already resolved or never existed.
func (s *Store) MarkFailed(conversationID, tempID string) {
	s.mu.Lock()
	c := s.getOrCreateLocked(conversationID)
	i := indexByTempID(c.messages, tempID)
	if i < 0 || c.messages[i].Status != StatusSending {
		s.mu.Unlock()
		return
	}
	c.messages[i].Status = StatusFailed
	out := c.messages[i]
	s.mu.Unlock()

	s.publishUpserted(out)
}

// FailedMessage returns the Failed entry with the given temp id, if any.
// Callers use it to re-send the original text.
func (s *Store) FailedMessage(conversationID, tempID string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(conversationID)
	i := indexByTempID(c.messages, tempID)
	if i < 0 || c.messages[i].Status != StatusFailed {
		return Message{}, false
	}
	return c.messages[i], true
}

// SetUnread overwrites a conversation's unread count.
func (s *Store) SetUnread(conversationID string, count int) {
	if count < 0 {
		count = 0
	}
	s.mu.Lock()
	c := s.getOrCreateLocked(conversationID)
	changed := c.meta.UnreadCount != count
	c.meta.UnreadCount = count
	s.mu.Unlock()

	if changed {
		s.publishUnread(conversationID, count)
	}
}

// IncrementUnread bumps a conversation's unread count. Messages authored by
// the local user never count as unread, so their sender id is a no-op.
func (s *Store) IncrementUnread(conversationID, senderID string) {
	if senderID == s.selfID {
		return
	}
	s.mu.Lock()
	c := s.getOrCreateLocked(conversationID)
	c.meta.UnreadCount++
	count := c.meta.UnreadCount
	s.mu.Unlock()

	s.publishUnread(conversationID, count)
}

// MarkRead zeroes a conversation's unread count and stamps unviewed inbound
// messages with the given time.
func (s *Store) MarkRead(conversationID string, at time.Time) {
	s.mu.Lock()
	c := s.getOrCreateLocked(conversationID)
	for i := range c.messages {
		m := &c.messages[i]
		if !m.IsOwn && m.ViewedAt.IsZero() {
			m.ViewedAt = at
		}
	}
	changed := c.meta.UnreadCount != 0
	c.meta.UnreadCount = 0
	s.mu.Unlock()

	if changed {
		s.publishUnread(conversationID, 0)
	}
}

// ApplyReadReceipt records that a message was viewed. Last writer wins.
func (s *Store) ApplyReadReceipt(conversationID string, messageID int64, viewedAt time.Time) {
	s.mu.Lock()
	c := s.getOrCreateLocked(conversationID)
	i := indexByID(c.messages, messageID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	c.messages[i].ViewedAt = viewedAt
	out := c.messages[i]
	s.mu.Unlock()

	s.publishUpserted(out)
}

// Snapshot returns a copy of the conversation's message list in order.
// Callers never see the internal slice.
func (s *Store) Snapshot(conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(conversationID)
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Conversations returns conversation metadata sorted by last activity,
// newest first.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, c.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// UnreadCounts returns the per-conversation unread counters.
func (s *Store) UnreadCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.convs))
	for id, c := range s.convs {
		out[id] = c.meta.UnreadCount
	}
	return out
}

// Reset drops all conversation state. Used on logout; the store is reusable
// afterwards.
func (s *Store) Reset() {
	s.mu.Lock()
	s.convs = make(map[string]*conversation)
	s.mu.Unlock()
}

func (s *Store) getOrCreateLocked(conversationID string) *conversation {
	c, ok := s.convs[conversationID]
	if !ok {
		c = &conversation{meta: Conversation{ID: conversationID}}
		s.convs[conversationID] = c
	}
	return c
}

// promoteLocked replaces a Sending entry in place with its confirmed
// counterpart. Position and ViewedAt are preserved; TempID is kept so a
// late acknowledgement still resolves to the same entry.
func (s *Store) promoteLocked(c *conversation, i int, confirmed Message) {
	m := &c.messages[i]
	m.ID = confirmed.ID
	if !confirmed.CreatedAt.IsZero() {
		m.CreatedAt = confirmed.CreatedAt
	}
	if confirmed.SenderName != "" {
		m.SenderName = confirmed.SenderName
	}
	m.Status = StatusSent
	s.touchLocked(c, *m)
}

// insertOrderedLocked inserts keeping ascending (CreatedAt, ID) order among
// confirmed entries. Pending Sending entries sit at the tail with local
// timestamps, so a backfilled message lands before them naturally.
func (s *Store) insertOrderedLocked(c *conversation, m Message) {
	pos := len(c.messages)
	for i := len(c.messages) - 1; i >= 0; i-- {
		if !after(c.messages[i], m) {
			break
		}
		pos = i
	}
	c.messages = append(c.messages, Message{})
	copy(c.messages[pos+1:], c.messages[pos:])
	c.messages[pos] = m
}

func after(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *Store) touchLocked(c *conversation, m Message) {
	if m.CreatedAt.Before(c.meta.LastActivity) {
		return
	}
	c.meta.LastActivity = m.CreatedAt
	c.meta.LastPreview = truncate(m.Text, previewLen)
}

func indexByTempID(msgs []Message, tempID string) int {
	for i := range msgs {
		if msgs[i].TempID == tempID {
			return i
		}
	}
	return -1
}

func indexByID(msgs []Message, id int64) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) publishUpserted(m Message) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:           bus.KindMessageUpserted,
		ConversationID: m.ConversationID,
		Timestamp:      time.Now(),
		Payload:        m,
	})
}

func (s *Store) publishUnread(conversationID string, count int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:           bus.KindUnreadChanged,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		Payload:        count,
	})
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
