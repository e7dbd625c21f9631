package livequery

import (
	"context"
	"sync"

	"laborease/changefeed"
)

// RecordConfig wires a single filtered row to a feed.
type RecordConfig[T any] struct {
	Feed      *changefeed.Feed
	Table     string
	Column    string
	Value     string
	Events    changefeed.EventType
	Initial   *T
	Transform Transform[T] // optional
	OnError   func(error)  // optional
}

// Record mirrors one row. Inserts and updates replace the whole value;
// a delete clears it.
type Record[T any] struct {
	feed      *changefeed.Feed
	table     string
	column    string
	value     string
	events    changefeed.EventType
	transform Transform[T]
	onError   func(error)

	mu      sync.Mutex
	current *T
	sub     *changefeed.Subscription
}

func NewRecord[T any](cfg RecordConfig[T]) *Record[T] {
	r := &Record[T]{
		feed:      cfg.Feed,
		table:     cfg.Table,
		column:    cfg.Column,
		value:     cfg.Value,
		events:    cfg.Events,
		transform: cfg.Transform,
		onError:   cfg.OnError,
	}
	if cfg.Initial != nil {
		v := *cfg.Initial
		r.current = &v
	}
	if r.transform == nil {
		r.transform = decodeJSON[T]
	}
	if r.onError == nil {
		r.onError = func(error) {}
	}
	return r
}

// Start subscribes the record, releasing any previous subscription first.
func (r *Record[T]) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.sub != nil {
		r.sub.Unsubscribe()
		r.sub = nil
	}
	table, events := r.table, r.events
	rf := &changefeed.RowFilter{Column: r.column, Value: r.value}
	r.mu.Unlock()

	sub, err := r.feed.Subscribe(ctx, table, events, rf, r.apply)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
	return nil
}

// Reset overwrites the current value with a fresh snapshot.
func (r *Record[T]) Reset(v *T) {
	r.mu.Lock()
	if v == nil {
		r.current = nil
	} else {
		cp := *v
		r.current = &cp
	}
	r.mu.Unlock()
}

// Get returns the current value and whether one is set.
func (r *Record[T]) Get() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		var zero T
		return zero, false
	}
	return *r.current, true
}

// Close releases the subscription. Idempotent.
func (r *Record[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		r.sub.Unsubscribe()
		r.sub = nil
	}
}

func (r *Record[T]) apply(ev changefeed.Event) {
	switch ev.Type {
	case changefeed.EventInsert, changefeed.EventUpdate:
		v, err := r.transform(ev.New)
		if err != nil {
			r.onError(err)
			return
		}
		r.mu.Lock()
		r.current = &v
		r.mu.Unlock()
	case changefeed.EventDelete:
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
	}
}
