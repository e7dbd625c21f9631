// Package livequery keeps a local reactive copy of store entities in sync
// with a change-feed subscription plus an externally supplied snapshot. The
// snapshot is the source of truth; the feed is an incremental patch layer on
// top of the current snapshot, not a replacement for re-fetching.
package livequery

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"laborease/changefeed"
)

// Transform decodes a raw changed row into T. When nil, plain JSON decoding
// into T is used. A failing transform is reported through OnError; this layer
// does not guard beyond that.
type Transform[T any] func(json.RawMessage) (T, error)

// CollectionConfig wires a Collection to a feed.
type CollectionConfig[T any] struct {
	Feed      *changefeed.Feed
	Table     string
	Events    changefeed.EventType
	Identity  func(T) string // required: stable identity of an element
	Transform Transform[T]   // optional
	Initial   []T
	OnError   func(error) // optional, defaults to log
}

// Collection mirrors an ordered set of T. Insertion order is preserved:
// inserts append, updates replace in place, deletes remove.
type Collection[T any] struct {
	feed      *changefeed.Feed
	table     string
	events    changefeed.EventType
	identity  func(T) string
	transform Transform[T]
	onError   func(error)

	mu    sync.Mutex
	items []T
	gen   uint64
	sub   *changefeed.Subscription
}

func NewCollection[T any](cfg CollectionConfig[T]) *Collection[T] {
	c := &Collection[T]{
		feed:      cfg.Feed,
		table:     cfg.Table,
		events:    cfg.Events,
		identity:  cfg.Identity,
		transform: cfg.Transform,
		onError:   cfg.OnError,
		items:     append([]T(nil), cfg.Initial...),
	}
	if c.transform == nil {
		c.transform = decodeJSON[T]
	}
	if c.onError == nil {
		c.onError = func(err error) { log.Printf("livequery: %v", err) }
	}
	return c
}

func decodeJSON[T any](raw json.RawMessage) (T, error) {
	var t T
	err := json.Unmarshal(raw, &t)
	return t, err
}

// Start subscribes the collection to its feed. A previous subscription is
// always released first, so retargeting never leaks a channel.
func (c *Collection[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	table, events := c.table, c.events
	c.mu.Unlock()

	sub, err := c.feed.Subscribe(ctx, table, events, nil, c.apply)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return nil
}

// Retarget points the collection at a different table, event filter, or
// transform and re-subscribes.
func (c *Collection[T]) Retarget(ctx context.Context, table string, events changefeed.EventType, transform Transform[T]) error {
	c.mu.Lock()
	c.table = table
	c.events = events
	if transform != nil {
		c.transform = transform
	}
	c.mu.Unlock()
	return c.Start(ctx)
}

// Reset overwrites local state with a fresh snapshot, discarding any
// feed-derived changes accumulated since the last one. Bumping the generation
// also invalidates merges still in flight, so a stale reduction can never
// clobber the snapshot.
func (c *Collection[T]) Reset(items []T) {
	c.mu.Lock()
	c.items = append([]T(nil), items...)
	c.gen++
	c.mu.Unlock()
}

// Items returns a copy of the current snapshot.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Close releases the subscription. Safe to call more than once.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
}

func (c *Collection[T]) apply(ev changefeed.Event) {
	c.mu.Lock()
	transform := c.transform
	items := append([]T(nil), c.items...)
	gen := c.gen
	c.mu.Unlock()

	next, err := ApplyCollection(items, ev, c.identity, transform)
	if err != nil {
		c.onError(err)
		return
	}

	c.mu.Lock()
	// A Reset landed while the transform ran; its snapshot wins and this
	// merge is dropped.
	if c.gen == gen {
		c.items = next
	}
	c.mu.Unlock()
}

// ApplyCollection is the pure reducer behind Collection: it returns a new
// slice with ev merged in. Inserts append, updates replace the element with
// matching identity (and are dropped on miss — no insert-on-miss), deletes
// remove by the old row's identity and are a no-op on miss.
func ApplyCollection[T any](items []T, ev changefeed.Event, identity func(T) string, transform Transform[T]) ([]T, error) {
	if transform == nil {
		transform = decodeJSON[T]
	}

	switch ev.Type {
	case changefeed.EventInsert:
		item, err := transform(ev.New)
		if err != nil {
			return items, err
		}
		return append(append([]T(nil), items...), item), nil

	case changefeed.EventUpdate:
		item, err := transform(ev.New)
		if err != nil {
			return items, err
		}
		id := identity(item)
		next := append([]T(nil), items...)
		for i := range next {
			if identity(next[i]) == id {
				next[i] = item
				break
			}
		}
		return next, nil

	case changefeed.EventDelete:
		id := rowID(ev.Old)
		if id == "" {
			return items, nil
		}
		next := make([]T, 0, len(items))
		for _, item := range items {
			if identity(item) != id {
				next = append(next, item)
			}
		}
		return next, nil
	}
	return items, nil
}

// rowID pulls the identity field out of a raw row.
func rowID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return ""
	}
	return row.ID
}
