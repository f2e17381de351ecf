package unread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrooksPoltl/snapsync/internal/bus"
	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/store"
)

type fakeClient struct {
	total int
	err   error
}

func (f *fakeClient) SendMessage(context.Context, string, string) (remote.Ack, error) {
	return remote.Ack{}, nil
}

func (f *fakeClient) FetchMessages(context.Context, string, int) ([]store.Message, error) {
	return nil, nil
}

func (f *fakeClient) MarkViewed(context.Context, string) error { return nil }

func (f *fakeClient) FetchUnreadTotal(context.Context) (int, error) {
	return f.total, f.err
}

func TestRefreshTotal(t *testing.T) {
	st := store.New("me", nil, nil)
	a := NewAggregator(st, &fakeClient{}, nil, nil, 0)

	st.SetUnread("c1", 2)
	st.SetUnread("c2", 3)

	if got := a.RefreshTotal(); got != 5 {
		t.Errorf("RefreshTotal() = %d, want 5", got)
	}
	if got := a.Total(); got != 5 {
		t.Errorf("Total() = %d, want 5", got)
	}

	snap := a.Snapshot()
	if snap.Total != 5 || snap.PerConversation["c1"] != 2 {
		t.Errorf("snapshot = %+v, want total 5 with c1=2", snap)
	}
}

func TestReconcileRemoteAdoptsAuthoritative(t *testing.T) {
	st := store.New("me", nil, nil)
	st.SetUnread("c1", 1)
	a := NewAggregator(st, &fakeClient{total: 7}, nil, nil, 0)
	a.RefreshTotal()

	got, err := a.ReconcileRemote(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 || a.Total() != 7 {
		t.Errorf("reconciled total = %d/%d, want 7", got, a.Total())
	}
}

func TestReconcileRemoteError(t *testing.T) {
	st := store.New("me", nil, nil)
	st.SetUnread("c1", 4)
	a := NewAggregator(st, &fakeClient{err: errors.New("down")}, nil, nil, 0)
	a.RefreshTotal()

	got, err := a.ReconcileRemote(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got != 4 {
		t.Errorf("total = %d, want cached value kept on error", got)
	}
}

func TestRefreshesOnConversationEvents(t *testing.T) {
	b := bus.New()
	st := store.New("me", b, nil)
	a := NewAggregator(st, &fakeClient{}, b, nil, 0)

	ch, unsub := b.Subscribe("unread.", 10)
	defer unsub()

	a.Start(context.Background())
	defer a.Stop()

	// Store publishes conversation.unread_changed; the aggregator reacts by
	// recomputing and announcing the new total.
	st.IncrementUnread("c1", "other")

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindUnreadTotal {
			t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindUnreadTotal)
		}
		if evt.Payload.(int) != 1 {
			t.Errorf("total = %v, want 1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for unread.total_changed event")
	}
}
