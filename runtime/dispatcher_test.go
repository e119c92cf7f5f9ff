package runtime

import (
	"chat-bridge/domain"
	"chat-bridge/domain/event"
	"chat-bridge/mocks"
	"chat-bridge/observability"
	"chat-bridge/projection"
	"chat-bridge/session"
	"chat-bridge/transport"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	timeline   *projection.Timeline
	publisher  *Publisher
	metrics    *observability.SessionMetrics
	sink       *mocks.MockEventSink
}

func newDispatcherFixture(t *testing.T) dispatcherFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	timeline := projection.NewTimeline()
	publisher := NewPublisher(log, time.Second)
	metrics := observability.NewSessionMetrics()
	store := session.NewStore()
	store.Set(domain.Session{ChatID: "chat-1"})

	sink := mocks.NewMockEventSink(ctrl)
	publisher.Subscribe(sink)

	dispatcher := NewDispatcher(log, projection.NewNormalizer(log), timeline, publisher, metrics, store)
	return dispatcherFixture{
		dispatcher: dispatcher,
		timeline:   timeline,
		publisher:  publisher,
		metrics:    metrics,
		sink:       sink,
	}
}

func chatFrame(t *testing.T, id, content string) transport.Frame {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"Id":              id,
		"Type":            "MESSAGE",
		"Content":         content,
		"ContentType":     "text/plain",
		"ParticipantRole": "AGENT",
		"AbsoluteTime":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	return transport.Frame{Topic: transport.TopicChat, Content: payload}
}

func TestDispatcher_ChatFrame_DeliversOnce(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t)

	delivered := 0
	f.sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, e event.ChatEvent) error {
			msg, ok := e.(event.MessageReceived)
			req.True(ok)
			req.Equal("chat-1", msg.Chat)
			req.Equal("m1", msg.Message.ID)
			delivered++
			return nil
		}).Times(1)

	// Given the same frame delivered twice (redelivery after reconnect)
	frame := chatFrame(t, "m1", "hello")
	f.dispatcher.HandleFrame(frame)
	f.dispatcher.HandleFrame(frame)

	// Then the message reaches the sinks exactly once
	req.Equal(1, delivered)
	req.Equal(1, f.timeline.Len())

	stats := f.metrics.Snapshot()
	req.Equal(uint64(2), stats.FramesReceived)
	req.Equal(uint64(1), stats.MessagesDelivered)
	req.Equal(uint64(1), stats.DuplicatesDropped)
}

func TestDispatcher_BadFrameDoesNotStopDelivery(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t)

	f.sink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	bad := transport.Frame{Topic: transport.TopicChat, Content: json.RawMessage(`{"Type":"MESSAGE"}`)}
	f.dispatcher.HandleFrame(bad)
	f.dispatcher.HandleFrame(chatFrame(t, "m1", "still alive"))

	req.Equal(1, f.timeline.Len())
	req.Equal(uint64(1), f.metrics.Snapshot().ParseFailures)
}

func TestDispatcher_EventFrame_PublishesAndSignalsChatEnded(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t)

	endedSignalled := false
	f.dispatcher.SetOnChatEnded(func() { endedSignalled = true })

	f.sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, e event.ChatEvent) error {
			_, ok := e.(event.ChatEnded)
			req.True(ok)
			return nil
		}).Times(1)

	payload := fmt.Appendf(nil, `{"Type":"CHAT_ENDED","AbsoluteTime":%q}`,
		time.Now().UTC().Format(time.RFC3339Nano))
	f.dispatcher.HandleFrame(transport.Frame{Topic: transport.TopicEvent, Content: payload})

	req.True(endedSignalled)
}

func TestDispatcher_HeartbeatAndUnknownTopicsAreIgnored(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t)

	// No EXPECT set: any delivery would fail the test
	f.dispatcher.HandleFrame(transport.Frame{Topic: transport.TopicHeartbeat})
	f.dispatcher.HandleFrame(transport.Frame{Topic: "aws/unknown"})

	req.Equal(uint64(2), f.metrics.Snapshot().FramesReceived)
}
