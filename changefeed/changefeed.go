// Package changefeed normalizes row-level change notifications from the
// backing store into typed events and hands them to subscribers. Events on
// one subscription arrive in commit order; nothing is ordered across
// subscriptions and nothing is redelivered after a transport drop — callers
// reconcile with a fresh fetch.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"laborease/mq"
)

// subSeq disambiguates subscriptions created within the same nanosecond.
var subSeq atomic.Int64

// EventType narrows a subscription to one kind of mutation.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAny    EventType = "*"
)

// Event is a normalized row change, decoded once at the feed boundary.
// New carries the row after an insert or update; Old carries the row before
// an update or delete.
type Event struct {
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// RowFilter restricts a subscription to rows whose column equals the value,
// compared on the row's JSON form.
type RowFilter struct {
	Column string
	Value  string
}

// Feed publishes and subscribes change events over a Bus.
type Feed struct {
	bus mq.Bus
}

func New(bus mq.Bus) *Feed {
	return &Feed{bus: bus}
}

func topicFor(table string) string {
	return "changes:" + table
}

// Publish emits a change record for table. Rows are marshalled here so every
// subscriber sees the same wire form.
func (f *Feed) Publish(ctx context.Context, table string, typ EventType, newRow, oldRow any) error {
	ev := Event{Table: table, Type: typ}

	if newRow != nil {
		raw, err := json.Marshal(newRow)
		if err != nil {
			return fmt.Errorf("changefeed: marshal new row: %w", err)
		}
		ev.New = raw
	}
	if oldRow != nil {
		raw, err := json.Marshal(oldRow)
		if err != nil {
			return fmt.Errorf("changefeed: marshal old row: %w", err)
		}
		ev.Old = raw
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("changefeed: marshal event: %w", err)
	}
	return f.bus.Publish(ctx, topicFor(table), payload)
}

// Subscription is a live change-feed binding. Unsubscribe is idempotent and
// safe to call at any point, including mid-delivery.
type Subscription struct {
	name string
	sub  mq.BusSubscription
	stop chan struct{}
	once sync.Once
}

// Name returns the unique channel identity of this subscription.
func (s *Subscription) Name() string { return s.name }

// Unsubscribe releases the underlying channel exactly once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		s.sub.Close()
	})
}

// Subscribe binds fn to every change on table matching the event filter and
// optional row filter. Each call gets its own channel identity so concurrent
// subscriptions on the same table never collide.
func (f *Feed) Subscribe(ctx context.Context, table string, filter EventType, rowFilter *RowFilter, fn func(Event)) (*Subscription, error) {
	seq := subSeq.Add(1)
	name := fmt.Sprintf("changes-%s-%s-%d-%d", table, filter, time.Now().UnixNano(), seq)
	if rowFilter != nil {
		name = fmt.Sprintf("changes-%s-%s-%s-%s-%d-%d", table, rowFilter.Column, rowFilter.Value, filter, time.Now().UnixNano(), seq)
	}

	busSub, err := f.bus.Subscribe(ctx, topicFor(table))
	if err != nil {
		return nil, fmt.Errorf("changefeed: subscribe %s: %w", table, err)
	}

	s := &Subscription{name: name, sub: busSub, stop: make(chan struct{})}

	go func() {
		for {
			select {
			case <-s.stop:
				return
			case payload, ok := <-busSub.Messages():
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal(payload, &ev); err != nil {
					log.Printf("changefeed: dropping malformed event on %s: %v", table, err)
					continue
				}
				if filter != EventAny && ev.Type != filter {
					continue
				}
				if rowFilter != nil && !matchesRow(ev, rowFilter) {
					continue
				}
				select {
				case <-s.stop:
					return
				default:
				}
				fn(ev)
			}
		}
	}()

	return s, nil
}

// matchesRow compares the filter column on the changed row. Deletes are
// matched against the old row, everything else against the new one.
func matchesRow(ev Event, rf *RowFilter) bool {
	raw := ev.New
	if ev.Type == EventDelete {
		raw = ev.Old
	}
	if len(raw) == 0 {
		return false
	}

	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return false
	}
	v, ok := row[rf.Column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == rf.Value
}
