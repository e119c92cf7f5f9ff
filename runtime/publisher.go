package runtime

import (
	"chat-bridge/contract"
	"chat-bridge/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher fans delivered events out to registered sinks. Registration
// returns a Subscription handle so teardown is deterministic and needs no
// identity-based removal.
//
// Publish runs on the single delivery path: sinks are called one at a
// time, each bounded by the sink timeout. A slow sink delays subsequent
// delivery but never corrupts ordering.
type Publisher struct {
	log         *slog.Logger
	sinkTimeout time.Duration

	mu     sync.RWMutex
	nextID int
	sinks  map[int]contract.EventSink
}

func NewPublisher(log *slog.Logger, sinkTimeout time.Duration) *Publisher {
	return &Publisher{
		log:         log,
		sinkTimeout: sinkTimeout,
		sinks:       make(map[int]contract.EventSink),
	}
}

// Subscribe registers a sink. Cancelling the returned handle is idempotent
// and stops all future deliveries to that sink.
func (p *Publisher) Subscribe(sink contract.EventSink) contract.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.sinks[id] = sink

	return &subscription{cancel: func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.sinks, id)
	}}
}

// Publish delivers one event to every registered sink.
func (p *Publisher) Publish(ctx context.Context, e event.ChatEvent) {
	p.mu.RLock()
	sinks := make([]contract.EventSink, 0, len(p.sinks))
	for _, s := range p.sinks {
		sinks = append(sinks, s)
	}
	p.mu.RUnlock()

	for _, s := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
		if err := s.Consume(sinkCtx, e); err != nil {
			p.log.Warn("Sink failed to consume event", "error", err)
		}
		cancel()
	}
}

// Count reports the number of live subscriptions.
func (p *Publisher) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sinks)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}
