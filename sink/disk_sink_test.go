package sink

import (
	"chat-bridge/domain"
	"chat-bridge/domain/event"
	"chat-bridge/mocks"
	"chat-bridge/repositories"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDiskSink_ArchivesDeliveredMessages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockITranscriptRepository(ctrl)
	diskSink := NewDiskSink(repository, slog.Default())

	at := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	evt := event.MessageReceived{
		Chat: "chat-1",
		Message: domain.Message{
			ID:          "m1",
			Kind:        domain.KindMessage,
			Content:     "hello",
			ContentType: "text/plain",
			Role:        domain.RoleAgent,
			DisplayName: "Alice",
			Language:    "eng",
			At:          at,
		},
	}

	repository.EXPECT().Store(repositories.DiskMessage{
		ID:          "m1",
		ChatID:      "chat-1",
		Kind:        "message",
		Content:     "hello",
		ContentType: "text/plain",
		Role:        "agent",
		DisplayName: "Alice",
		Language:    "eng",
		At:          at,
	}).Return(nil).Times(1)

	req.NoError(diskSink.Consume(context.Background(), evt))
}

func TestDiskSink_IgnoresNonMessageEvents(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockITranscriptRepository(ctrl)
	diskSink := NewDiskSink(repository, slog.Default())

	// No EXPECT set: a Store call would fail the test
	req.NoError(diskSink.Consume(context.Background(), event.TypingStarted{Chat: "chat-1"}))
	req.NoError(diskSink.Consume(context.Background(), event.ChatEnded{Chat: "chat-1"}))
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	channelSink := NewChannelSink(1)

	req.NoError(channelSink.Consume(context.Background(), event.ChatEnded{Chat: "chat-1"}))
	// Second consume finds the buffer full and drops instead of blocking
	req.NoError(channelSink.Consume(context.Background(), event.ChatEnded{Chat: "chat-1"}))
	req.Len(channelSink.Events, 1)
}
