// Package realtime implements the remote boundary against a Supabase-style
// backend: push events over phoenix-protocol websocket channels and
// request/response calls over the REST RPC endpoints. The engine itself
// depends only on the interfaces in internal/remote.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/remote"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	heartbeatInterval = 30 * time.Second
	leaveTimeout      = 2 * time.Second
)

// Subscriber opens one websocket channel per conversation subscription.
type Subscriber struct {
	url     string
	anonKey string
	selfID  string
	logger  *zap.Logger
}

// NewSubscriber creates a subscriber dialing the given realtime endpoint.
func NewSubscriber(realtimeURL, anonKey, selfID string, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		url:     realtimeURL,
		anonKey: anonKey,
		selfID:  selfID,
		logger:  logger,
	}
}

// Subscribe dials the realtime endpoint, joins the conversation channel,
// and delivers parsed events to onEvent until Unsubscribe or transport
// loss. Blocks until the join is acknowledged.
func (s *Subscriber) Subscribe(ctx context.Context, conversationID string, onEvent func(remote.Event)) (remote.Subscription, error) {
	dialURL := s.url + "?apikey=" + s.anonKey + "&vsn=1.0.0"
	conn, _, err := websocket.Dial(ctx, dialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	topic := "realtime:conversation:" + conversationID
	joinPayload, _ := json.Marshal(map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]string{{
				"event":  "*",
				"schema": "public",
				"table":  "messages",
				"filter": "conversation_id=eq." + conversationID,
			}},
		},
	})
	if err := writeFrame(ctx, conn, frame{Topic: topic, Event: "phx_join", Payload: joinPayload, Ref: "1"}); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "join failed")
		return nil, fmt.Errorf("join channel: %w", err)
	}
	if err := awaitJoinReply(ctx, conn, topic); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "join rejected")
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		conn:           conn,
		topic:          topic,
		conversationID: conversationID,
		selfID:         s.selfID,
		onEvent:        onEvent,
		logger:         s.logger,
		cancel:         cancel,
	}
	go sub.readLoop(runCtx)
	go sub.heartbeatLoop(runCtx)

	s.logger.Info("channel joined", zap.String("topic", topic))
	return sub, nil
}

type subscription struct {
	conn           *websocket.Conn
	topic          string
	conversationID string
	selfID         string
	onEvent        func(remote.Event)
	logger         *zap.Logger
	cancel         context.CancelFunc

	mu     sync.Mutex
	closed bool
	ref    int
}

// deliver hands an event to the callback unless the subscription is closed.
// The mutex is held across the callback so Unsubscribe cannot return while
// a delivery is still in flight.
func (s *subscription) deliver(evt remote.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.onEvent(evt)
}

func (s *subscription) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.deliver(remote.ChannelClosedEvent{ConversationID: s.conversationID, Err: err})
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Warn("bad realtime frame", zap.Error(err))
			continue
		}

		switch f.Event {
		case "postgres_changes":
			evt, err := parseChange(f.Payload, s.selfID)
			if err != nil {
				s.logger.Warn("bad change payload",
					zap.String("topic", f.Topic), zap.Error(err))
				continue
			}
			if evt != nil {
				s.deliver(evt)
			}
		case "phx_error":
			s.deliver(remote.ChannelClosedEvent{
				ConversationID: s.conversationID,
				Err:            fmt.Errorf("channel error on %s", f.Topic),
			})
			return
		case "phx_reply", "presence_state", "presence_diff":
			// Control traffic.
		}
	}
}

func (s *subscription) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.ref++
			ref := strconv.Itoa(s.ref)
			s.mu.Unlock()
			hb := frame{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`), Ref: ref}
			if err := writeFrame(ctx, s.conn, hb); err != nil {
				// Read loop surfaces the loss.
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Unsubscribe leaves the channel and closes the connection. No events are
// delivered after it returns.
func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	_ = writeFrame(leaveCtx, s.conn, frame{Topic: s.topic, Event: "phx_leave", Payload: json.RawMessage(`{}`)})
	return s.conn.Close(websocket.StatusNormalClosure, "unsubscribe")
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// awaitJoinReply reads frames until the join acknowledgement for topic
// arrives, honoring ctx for the deadline.
func awaitJoinReply(ctx context.Context, conn *websocket.Conn, topic string) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("await join reply: %w", err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if f.Event != "phx_reply" || f.Topic != topic {
			continue
		}
		var reply struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(f.Payload, &reply); err != nil {
			return fmt.Errorf("decode join reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("join rejected for %s: %s", topic, reply.Status)
		}
		return nil
	}
}
