package runtime

import (
	"chat-bridge/domain/event"
	"chat-bridge/observability"
	"chat-bridge/projection"
	"chat-bridge/session"
	"chat-bridge/transport"
	"context"
	"log/slog"
)

// Dispatcher is the single inbound delivery path. It runs on the transport
// read loop: normalize, deduplicate, insert into the timeline, then fan
// out. A frame that fails to parse is dropped without stopping delivery of
// subsequent frames.
type Dispatcher struct {
	log        *slog.Logger
	normalizer projection.Normalizer
	timeline   *projection.Timeline
	publisher  *Publisher
	metrics    *observability.SessionMetrics
	store      *session.Store

	onChatEnded func()
}

func NewDispatcher(log *slog.Logger, normalizer projection.Normalizer,
	timeline *projection.Timeline, publisher *Publisher,
	metrics *observability.SessionMetrics, store *session.Store) *Dispatcher {
	return &Dispatcher{
		log:        log,
		normalizer: normalizer,
		timeline:   timeline,
		publisher:  publisher,
		metrics:    metrics,
		store:      store,
	}
}

// SetOnChatEnded registers the session manager hook fired when the backend
// declares the conversation over.
func (d *Dispatcher) SetOnChatEnded(fn func()) {
	d.onChatEnded = fn
}

// HandleFrame is registered as the transport frame handler.
func (d *Dispatcher) HandleFrame(frame transport.Frame) {
	d.metrics.IncrFramesReceived()

	var chatID string
	if sess, ok := d.store.Get(); ok {
		chatID = sess.ChatID
	}
	ctx := context.Background()

	switch frame.Topic {
	case transport.TopicChat:
		msg, err := d.normalizer.Message(frame.Content)
		if err != nil {
			d.metrics.IncrParseFailures()
			d.log.Warn("Dropping chat frame", "error", err)
			return
		}
		if msg == nil {
			return
		}
		if !d.timeline.Insert(*msg) {
			d.metrics.IncrDuplicatesDropped()
			d.log.Debug("Duplicate message dropped", "id", msg.ID)
			return
		}
		d.metrics.IncrMessagesDelivered()
		d.publisher.Publish(ctx, event.MessageReceived{Chat: chatID, Message: *msg})

	case transport.TopicEvent:
		evt, err := d.normalizer.Event(chatID, frame.Content)
		if err != nil {
			d.metrics.IncrParseFailures()
			d.log.Warn("Dropping event frame", "error", err)
			return
		}
		if evt == nil {
			return
		}
		d.publisher.Publish(ctx, evt)
		if _, ended := evt.(event.ChatEnded); ended && d.onChatEnded != nil {
			d.onChatEnded()
		}

	case transport.TopicHeartbeat:
		// Keepalive only, nothing to deliver.

	default:
		d.log.Debug("Unknown frame topic", "topic", frame.Topic)
	}
}
