package realtime

import (
	"encoding/json"
	"testing"

	"github.com/BrooksPoltl/snapsync/internal/remote"
)

func TestParseInsert(t *testing.T) {
	payload := json.RawMessage(`{
		"data": {
			"type": "INSERT",
			"table": "messages",
			"record": {
				"id": 42,
				"conversation_id": 7,
				"sender_id": "other-user",
				"content_type": "text",
				"content_text": "hello",
				"created_at": "2026-08-30T12:00:00.123456+00:00",
				"viewed_at": null
			}
		}
	}`)

	evt, err := parseChange(payload, "self-user")
	if err != nil {
		t.Fatalf("parseChange() error = %v", err)
	}
	ins, ok := evt.(remote.InsertEvent)
	if !ok {
		t.Fatalf("event = %T, want InsertEvent", evt)
	}
	m := ins.Message
	if m.ID != 42 || m.ConversationID != "7" || m.Text != "hello" {
		t.Errorf("message = %+v, want id=42 conversation=7 text=hello", m)
	}
	if m.IsOwn {
		t.Error("message from another user flagged as own")
	}
	if m.Viewed() {
		t.Error("unviewed message flagged as viewed")
	}
}

func TestParseInsertOwn(t *testing.T) {
	payload := json.RawMessage(`{
		"data": {
			"type": "INSERT",
			"record": {
				"id": 1,
				"conversation_id": 7,
				"sender_id": "self-user",
				"content_type": "text",
				"content_text": "mine",
				"created_at": "2026-08-30T12:00:00+00:00"
			}
		}
	}`)

	evt, err := parseChange(payload, "self-user")
	if err != nil {
		t.Fatal(err)
	}
	if !evt.(remote.InsertEvent).Message.IsOwn {
		t.Error("own message not flagged as own")
	}
}

func TestParseReadReceipt(t *testing.T) {
	payload := json.RawMessage(`{
		"data": {
			"type": "UPDATE",
			"record": {
				"id": 42,
				"conversation_id": 7,
				"sender_id": "self-user",
				"created_at": "2026-08-30T12:00:00+00:00",
				"viewed_at": "2026-08-30T12:05:00+00:00"
			}
		}
	}`)

	evt, err := parseChange(payload, "self-user")
	if err != nil {
		t.Fatalf("parseChange() error = %v", err)
	}
	rr, ok := evt.(remote.ReadReceiptEvent)
	if !ok {
		t.Fatalf("event = %T, want ReadReceiptEvent", evt)
	}
	if rr.MessageID != 42 || rr.ConversationID != "7" || rr.ViewedAt.IsZero() {
		t.Errorf("receipt = %+v, want message 42 in conversation 7", rr)
	}
}

func TestParseUpdateWithoutViewStampIgnored(t *testing.T) {
	payload := json.RawMessage(`{
		"data": {
			"type": "UPDATE",
			"record": {"id": 42, "conversation_id": 7, "created_at": "2026-08-30T12:00:00+00:00"}
		}
	}`)

	evt, err := parseChange(payload, "self-user")
	if err != nil {
		t.Fatal(err)
	}
	if evt != nil {
		t.Errorf("event = %v, want nil for updates without a view stamp", evt)
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := parseChange(json.RawMessage(`{"data": "nope"}`), "u"); err == nil {
		t.Error("expected error for malformed payload")
	}
	if _, err := parseChange(json.RawMessage(`{"data": {"type": "INSERT", "record": {}}}`), "u"); err == nil {
		t.Error("expected error for insert without id")
	}
}
