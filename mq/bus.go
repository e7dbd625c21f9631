package mq

import (
	"context"
	"sync"
)

// Bus is the transport change notifications travel over. Delivery on one
// topic follows publish order; nothing is acknowledged or retried, so a
// dropped transport simply stops delivering.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (BusSubscription, error)
}

type BusSubscription interface {
	Messages() <-chan []byte
	Close() error
}

// MemoryBus is an in-process Bus for tests and single-node deployments.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]*memorySub
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- payload:
		default:
			// Slow subscriber; drop, same as a lossy transport.
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (BusSubscription, error) {
	s := &memorySub{bus: b, topic: topic, ch: make(chan []byte, 64)}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()
	return s, nil
}

type memorySub struct {
	bus   *MemoryBus
	topic string
	ch    chan []byte
	once  sync.Once
}

func (s *memorySub) Messages() <-chan []byte { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		subs := b.subs[s.topic]
		next := subs[:0]
		for _, other := range subs {
			if other != s {
				next = append(next, other)
			}
		}
		b.subs[s.topic] = next
		b.mu.Unlock()
		close(s.ch)
	})
	return nil
}
