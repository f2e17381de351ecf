// Package send implements the optimistic send path: append a provisional
// entry, issue the remote call, reconcile or fail the entry with the
// outcome. Retry policy belongs to the caller; the coordinator never
// retries on its own.
package send

import (
	"context"
	"strings"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/bus"
	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coordinator owns the optimistic send flow for all conversations.
type Coordinator struct {
	store  *store.Store
	client remote.Client
	bus    *bus.Bus
	logger *zap.Logger
	maxLen int
}

// NewCoordinator creates a coordinator. maxLen bounds message text length;
// zero or negative means no bound.
func NewCoordinator(st *store.Store, client remote.Client, b *bus.Bus, logger *zap.Logger, maxLen int) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:  st,
		client: client,
		bus:    b,
		logger: logger,
		maxLen: maxLen,
	}
}

// Send validates text, appends an optimistic entry, and performs the remote
// send. It returns the temp id of the provisional entry; on failure the
// entry is marked Failed and the returned *remote.SendError carries the
// original text for retry. Send blocks on the remote call, so callers keep
// it off their event loop.
func (c *Coordinator) Send(ctx context.Context, conversationID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", remote.NewValidationError(text, "empty message")
	}
	if c.maxLen > 0 && len(text) > c.maxLen {
		return "", remote.NewValidationError(text, "message too long")
	}

	tempID := uuid.NewString()
	c.store.AppendOptimistic(conversationID, tempID, c.store.SelfID(), text)

	ack, err := c.client.SendMessage(ctx, conversationID, text)
	if err != nil {
		c.store.MarkFailed(conversationID, tempID)
		sendErr := remote.ClassifySendError(err, text)
		c.logger.Warn("send failed",
			zap.String("conversation_id", conversationID),
			zap.String("temp_id", tempID),
			zap.Error(err))
		c.publish(bus.KindSendFailed, conversationID, tempID)
		return tempID, sendErr
	}

	// The subscription may already have delivered this message; reconcile
	// is idempotent from either path.
	c.store.ReconcileConfirmed(conversationID, tempID, store.Message{
		ID:             ack.ID,
		ConversationID: conversationID,
		SenderID:       c.store.SelfID(),
		ContentType:    store.ContentText,
		Text:           text,
		CreatedAt:      ack.CreatedAt,
		IsOwn:          true,
		Status:         store.StatusSent,
	})

	c.logger.Info("message sent",
		zap.String("conversation_id", conversationID),
		zap.String("temp_id", tempID),
		zap.Int64("msg_id", ack.ID))
	c.publish(bus.KindSendAck, conversationID, tempID)
	return tempID, nil
}

// Retry re-sends the text of a Failed entry as a fresh optimistic send. The
// failed entry stays Failed; it is never resurrected.
func (c *Coordinator) Retry(ctx context.Context, conversationID, tempID string) (string, error) {
	failed, ok := c.store.FailedMessage(conversationID, tempID)
	if !ok {
		return "", remote.NewValidationError("", "no failed message to retry")
	}
	return c.Send(ctx, conversationID, failed.Text)
}

func (c *Coordinator) publish(kind bus.Kind, conversationID, tempID string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:           kind,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		Payload:        tempID,
	})
}
