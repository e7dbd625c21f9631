package mq

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus carries change notifications over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (BusSubscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	// Force the subscription onto the wire before returning.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	s := &redisSub{ps: ps, ch: make(chan []byte, 64), done: make(chan struct{})}
	go s.forward(ps.Channel())
	return s, nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan []byte
	done chan struct{}
	once sync.Once
	err  error
}

// forward pumps redis messages into the subscriber channel. A backlogged
// subscriber that has stopped draining must not pin this goroutine forever,
// so every send races against done.
func (s *redisSub) forward(msgs <-chan *redis.Message) {
	defer close(s.ch)
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.ch <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSub) Messages() <-chan []byte { return s.ch }

func (s *redisSub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}
