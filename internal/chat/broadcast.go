package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/metrics"
	"github.com/dailydrop/server/internal/model"
)

// Broadcaster fans newly created messages out to live subscribers.
// Publish never blocks on a consumer: every subscription buffers without
// bound and is drained by its own goroutine.
type Broadcaster struct {
	mu   sync.Mutex
	subs []*Subscription
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscription is a live stream of messages. Close it when the consumer
// goes away.
type Subscription struct {
	b      *Broadcaster
	filter uuid.UUID

	mu    sync.Mutex
	queue []model.Message

	wake    chan struct{}
	out     chan model.Message
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Subscribe registers a subscription for chatID, or for every chat when
// chatID is uuid.Nil.
func (b *Broadcaster) Subscribe(chatID uuid.UUID) *Subscription {
	s := &Subscription{
		b:       b,
		filter:  chatID,
		wake:    make(chan struct{}, 1),
		out:     make(chan model.Message),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	metrics.ChatSubscribers.Inc()

	go s.pump()
	return s
}

// Publish hands msg to every matching subscriber in registration order.
func (b *Broadcaster) Publish(msg model.Message) {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s.filter != uuid.Nil && s.filter != msg.ChatID {
			continue
		}
		s.enqueue(msg)
	}
	metrics.ChatMessagesPublished.Inc()
}

// Len returns the number of registered subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			metrics.ChatSubscribers.Dec()
			return
		}
	}
}

// Messages yields messages in publish order. The channel is closed by Close.
func (s *Subscription) Messages() <-chan model.Message {
	return s.out
}

// Close deregisters the subscription. Once it returns nothing more is
// delivered. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.remove(s)
		close(s.done)
		<-s.stopped
		s.mu.Lock()
		s.queue = nil
		s.mu.Unlock()
	})
}

func (s *Subscription) enqueue(msg model.Message) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.stopped)
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		msg := s.queue[0]
		s.queue[0] = model.Message{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- msg:
		case <-s.done:
			return
		}
	}
}
