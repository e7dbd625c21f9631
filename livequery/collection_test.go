package livequery

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"laborease/changefeed"
	"laborease/mq"
)

type item struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func itemID(i item) string { return i.ID }

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestApplyUpdatePreservesPosition(t *testing.T) {
	initial := []item{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}}

	ev := changefeed.Event{
		Type: changefeed.EventUpdate,
		New:  mustRaw(t, item{ID: "b", Label: "B-prime"}),
	}
	next, err := ApplyCollection(initial, ev, itemID, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(next) != 2 {
		t.Fatalf("expected 2 items, got %d", len(next))
	}
	if next[0].ID != "a" || next[0].Label != "A" {
		t.Fatalf("first element disturbed: %+v", next[0])
	}
	if next[1].ID != "b" || next[1].Label != "B-prime" {
		t.Fatalf("update not applied in place: %+v", next[1])
	}
}

func TestApplyUpdateMissIsDropped(t *testing.T) {
	initial := []item{{ID: "a"}}

	ev := changefeed.Event{
		Type: changefeed.EventUpdate,
		New:  mustRaw(t, item{ID: "ghost", Label: "X"}),
	}
	next, err := ApplyCollection(initial, ev, itemID, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// No insert-on-miss.
	if len(next) != 1 || next[0].ID != "a" {
		t.Fatalf("unexpected result %+v", next)
	}
}

func TestApplyDeleteMissingIDIsNoop(t *testing.T) {
	initial := []item{{ID: "a"}, {ID: "b"}}

	ev := changefeed.Event{
		Type: changefeed.EventDelete,
		Old:  mustRaw(t, item{ID: "ghost"}),
	}
	next, err := ApplyCollection(initial, ev, itemID, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(next) != 2 || next[0].ID != "a" || next[1].ID != "b" {
		t.Fatalf("collection changed: %+v", next)
	}
}

func TestApplyInsertAppends(t *testing.T) {
	initial := []item{{ID: "a"}}

	ev := changefeed.Event{
		Type: changefeed.EventInsert,
		New:  mustRaw(t, item{ID: "b", Label: "B"}),
	}
	next, err := ApplyCollection(initial, ev, itemID, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(next) != 2 || next[1].ID != "b" {
		t.Fatalf("insert not appended: %+v", next)
	}
	// reducer must not mutate its input
	if len(initial) != 1 {
		t.Fatalf("input slice mutated: %+v", initial)
	}
}

func TestApplyDeleteRemovesByOldRow(t *testing.T) {
	initial := []item{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	ev := changefeed.Event{
		Type: changefeed.EventDelete,
		Old:  mustRaw(t, item{ID: "b"}),
	}
	next, err := ApplyCollection(initial, ev, itemID, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(next) != 2 || next[0].ID != "a" || next[1].ID != "c" {
		t.Fatalf("unexpected result %+v", next)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestCollectionFollowsFeed(t *testing.T) {
	feed := changefeed.New(mq.NewMemoryBus())

	c := NewCollection(CollectionConfig[item]{
		Feed:     feed,
		Table:    "items",
		Events:   changefeed.EventAny,
		Identity: itemID,
		Initial:  []item{{ID: "a", Label: "A"}},
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	feed.Publish(context.Background(), "items", changefeed.EventInsert, item{ID: "b", Label: "B"}, nil)
	waitFor(t, func() bool { return len(c.Items()) == 2 })

	feed.Publish(context.Background(), "items", changefeed.EventUpdate, item{ID: "a", Label: "A2"}, nil)
	waitFor(t, func() bool { return c.Items()[0].Label == "A2" })

	feed.Publish(context.Background(), "items", changefeed.EventDelete, nil, item{ID: "b"})
	waitFor(t, func() bool { return len(c.Items()) == 1 })
}

func TestResetOverwritesFeedDerivedState(t *testing.T) {
	feed := changefeed.New(mq.NewMemoryBus())

	c := NewCollection(CollectionConfig[item]{
		Feed:     feed,
		Table:    "items",
		Events:   changefeed.EventAny,
		Identity: itemID,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	feed.Publish(context.Background(), "items", changefeed.EventInsert, item{ID: "x"}, nil)
	waitFor(t, func() bool { return len(c.Items()) == 1 })

	// A fresh snapshot is the source of truth.
	c.Reset([]item{{ID: "a"}, {ID: "b"}})
	items := c.Items()
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("reset did not overwrite: %+v", items)
	}
}

func TestResetDuringInFlightMergeWins(t *testing.T) {
	feed := changefeed.New(mq.NewMemoryBus())

	// The first transform blocks until released, holding a merge in flight
	// while a snapshot refresh lands underneath it.
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	transform := func(raw json.RawMessage) (item, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return decodeJSON[item](raw)
	}

	c := NewCollection(CollectionConfig[item]{
		Feed:      feed,
		Table:     "items",
		Events:    changefeed.EventAny,
		Identity:  itemID,
		Transform: transform,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	feed.Publish(context.Background(), "items", changefeed.EventInsert, item{ID: "stale"}, nil)
	select {
	case <-entered:
	case <-time.After(1 * time.Second):
		t.Fatal("merge never started")
	}

	c.Reset([]item{{ID: "fresh-a"}, {ID: "fresh-b"}})
	close(release)

	// Events deliver in order, so once this one lands the blocked merge has
	// finished too.
	feed.Publish(context.Background(), "items", changefeed.EventInsert, item{ID: "late"}, nil)
	waitFor(t, func() bool {
		items := c.Items()
		return len(items) > 0 && items[len(items)-1].ID == "late"
	})

	items := c.Items()
	if len(items) != 3 || items[0].ID != "fresh-a" || items[1].ID != "fresh-b" {
		t.Fatalf("stale merge clobbered snapshot: %+v", items)
	}
	for _, it := range items {
		if it.ID == "stale" {
			t.Fatalf("pre-reset merge survived: %+v", items)
		}
	}
}

func TestRecordFollowsFilteredRow(t *testing.T) {
	feed := changefeed.New(mq.NewMemoryBus())

	r := NewRecord(RecordConfig[item]{
		Feed:   feed,
		Table:  "items",
		Column: "id",
		Value:  "a",
		Events: changefeed.EventAny,
	})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Close()

	// Row for a different id never lands.
	feed.Publish(context.Background(), "items", changefeed.EventUpdate, item{ID: "b", Label: "B"}, nil)
	feed.Publish(context.Background(), "items", changefeed.EventUpdate, item{ID: "a", Label: "A2"}, nil)

	waitFor(t, func() bool {
		v, ok := r.Get()
		return ok && v.Label == "A2"
	})

	feed.Publish(context.Background(), "items", changefeed.EventDelete, nil, item{ID: "a"})
	waitFor(t, func() bool {
		_, ok := r.Get()
		return !ok
	})
}
