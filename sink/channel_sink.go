package sink

import (
	"chat-bridge/domain/event"
	"context"
)

// ChannelSink bridges the delivery path to a consumer goroutine, typically
// the terminal client rendering the live feed.
type ChannelSink struct {
	Events chan event.ChatEvent
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{Events: make(chan event.ChatEvent, bufferSize)}
}

// Consume forwards the event to the owning goroutine. A full buffer drops
// the event rather than stalling delivery for every other sink.
func (s *ChannelSink) Consume(ctx context.Context, e event.ChatEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
