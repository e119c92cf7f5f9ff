// Package sink provides EventSink implementations fed by the delivery
// path.
package sink

import (
	"chat-bridge/domain/event"
	"chat-bridge/repositories"
	"context"
	"log/slog"
)

// DiskSink archives every delivered message so the transcript survives
// restarts. Non-message events pass through untouched.
type DiskSink struct {
	repository repositories.ITranscriptRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.ITranscriptRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.ChatEvent) error {
	switch evt := e.(type) {
	case event.MessageReceived:
		return d.repository.Store(toDiskMessage(evt))
	default:
		return nil
	}
}

func toDiskMessage(evt event.MessageReceived) repositories.DiskMessage {
	m := evt.Message
	return repositories.DiskMessage{
		ID:            m.ID,
		ChatID:        evt.Chat,
		Kind:          string(m.Kind),
		Content:       m.Content,
		ContentType:   m.ContentType,
		ParticipantID: m.ParticipantID,
		Role:          string(m.Role),
		DisplayName:   m.DisplayName,
		Language:      m.Language,
		At:            m.At,
	}
}
