package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/store"
	"go.uber.org/zap"
)

// Client implements remote.Client over the backend's REST RPC endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	selfID     string
	logger     *zap.Logger
}

// NewClient creates a REST client for the given API base URL.
func NewClient(apiURL, anonKey, selfID string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    apiURL,
		anonKey:    anonKey,
		selfID:     selfID,
		logger:     logger,
	}
}

// SendMessage calls the send_message RPC and returns the assigned id.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (remote.Ack, error) {
	var out struct {
		ID        int64     `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	}
	params := map[string]any{
		"p_conversation_id": conversationID,
		"p_content_text":    text,
	}
	if err := c.rpc(ctx, "send_message", params, &out); err != nil {
		return remote.Ack{}, err
	}
	return remote.Ack{ID: out.ID, CreatedAt: out.CreatedAt}, nil
}

// FetchMessages calls the get_chat_messages RPC. Rows are returned in
// ascending creation order regardless of how the backend sorts them.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []messageRecord
	params := map[string]any{
		"p_conversation_id": conversationID,
		"p_limit":           limit,
	}
	if err := c.rpc(ctx, "get_chat_messages", params, &rows); err != nil {
		return nil, err
	}

	msgs := make([]store.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toMessage(c.selfID))
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

// MarkViewed calls the mark_messages_as_viewed RPC for the conversation.
func (c *Client) MarkViewed(ctx context.Context, conversationID string) error {
	params := map[string]any{"p_conversation_id": conversationID}
	return c.rpc(ctx, "mark_messages_as_viewed", params, nil)
}

// FetchUnreadTotal calls the get_total_unread_count RPC.
func (c *Client) FetchUnreadTotal(ctx context.Context) (int, error) {
	var total int
	if err := c.rpc(ctx, "get_total_unread_count", map[string]any{}, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (c *Client) rpc(ctx context.Context, fn string, params, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("rpc %s: encode params: %w", fn, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rest/v1/rpc/"+fn, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc %s: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", fn, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("rpc %s: %w", fn, remote.Unauthorized)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rpc %s: status %d: %s", fn, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rpc %s: decode response: %w", fn, err)
	}
	return nil
}
