package bus

import (
	"testing"
	"time"
)

func TestKindIn(t *testing.T) {
	cases := []struct {
		kind      Kind
		namespace string
		want      bool
	}{
		{KindMessageUpserted, "conversation.", true},
		{KindUnreadChanged, "conversation.", true},
		{KindSubscriptionLost, "subscription.lost", true},
		{KindSubscriptionState, "subscription.lost", false},
		{KindSendAck, "conversation.", false},
		{KindUnreadTotal, "", true},
	}
	for _, c := range cases {
		if got := c.kind.In(c.namespace); got != c.want {
			t.Errorf("Kind(%q).In(%q) = %v, want %v", c.kind, c.namespace, got, c.want)
		}
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageUpserted, ConversationID: "c1", Timestamp: time.Now()})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageUpserted {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageUpserted)
		}
		if evt.ConversationID != "c1" {
			t.Errorf("got conversation %q, want c1", evt.ConversationID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("subscription.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageUpserted})
	b.Publish(Event{Kind: KindSubscriptionLost})

	select {
	case evt := <-ch:
		if evt.Kind != KindSubscriptionLost {
			t.Errorf("got kind %q, want %q", evt.Kind, KindSubscriptionLost)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the conversation event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(Event{Kind: KindSendAck})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("unread.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindUnreadTotal, Payload: 1})
	// Dropped: buffer is full and delivery never blocks.
	b.Publish(Event{Kind: KindUnreadTotal, Payload: 2})

	evt := <-ch
	if evt.Payload.(int) != 1 {
		t.Errorf("got payload %v, want 1", evt.Payload)
	}
}
