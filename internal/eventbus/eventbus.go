// Package eventbus implements the in-process fan-out bus of spec §4.10:
// per-topic subscribers with a bounded buffer and a drop-oldest
// slow-consumer policy, surfacing a monotone lag_count on next delivery.
package eventbus

import (
	"sync"

	"github.com/sawpanic/sentinel/internal/metrics"
)

// Topic names one of the bus's fixed publication channels.
type Topic string

const (
	TopicSignals   Topic = "signals"
	TopicSnapshots Topic = "snapshots"
	TopicState     Topic = "state"
)

// Envelope wraps a published payload with the lag the subscriber has
// accumulated due to drop-oldest backpressure, as observed at delivery time.
type Envelope struct {
	Payload  any
	LagCount int64
}

// Bus fans out published messages per topic to bounded per-subscriber
// channels.
type Bus struct {
	mu          sync.Mutex
	bufferSize  int
	subscribers map[Topic]map[*Subscription]struct{}
}

// New creates a Bus where each subscriber channel holds up to bufferSize
// messages (default 64) before oldest-message drop kicks in.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{bufferSize: bufferSize, subscribers: make(map[Topic]map[*Subscription]struct{})}
}

// Subscription is a bounded FIFO channel for one subscriber on one topic.
type Subscription struct {
	ch       chan Envelope
	mu       sync.Mutex
	lag      int64
	bus      *Bus
	topic    Topic
	unsubbed bool
}

// C returns the channel to receive envelopes from.
func (s *Subscription) C() <-chan Envelope { return s.ch }

// Subscribe registers a new bounded subscription on topic.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{ch: make(chan Envelope, b.bufferSize), bus: b, topic: topic}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[*Subscription]struct{})
	}
	b.subscribers[topic][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub from topic. Idempotent.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.unsubbed {
		return
	}
	sub.unsubbed = true
	if set, ok := b.subscribers[sub.topic]; ok {
		delete(set, sub)
	}
}

// Publish delivers payload to every subscriber on topic. A subscriber whose
// buffer is full has its oldest queued message dropped (incrementing its
// lag_count) to make room, preserving strict per-subscriber FIFO order.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subscribers[topic]))
	for sub := range b.subscribers[topic] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(payload)
	}
}

func (s *Subscription) deliver(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubbed {
		return
	}
	for {
		select {
		case s.ch <- Envelope{Payload: payload, LagCount: s.lag}:
			return
		default:
			// Buffer full: drop the oldest envelope and restamp the survivors so
			// the next one received reports the accumulated lag.
			var queued []Envelope
			for n := len(s.ch); n > 0; n-- {
				select {
				case env := <-s.ch:
					queued = append(queued, env)
				default:
				}
			}
			if len(queued) > 0 {
				s.lag++
				metrics.EventBusDrops.WithLabelValues(string(s.topic)).Inc()
				for _, env := range queued[1:] {
					env.LagCount = s.lag
					s.ch <- env
				}
			}
		}
	}
}
