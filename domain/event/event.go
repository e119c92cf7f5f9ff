package event

import (
	"chat-bridge/domain"
	"time"
)

// ChatEvent is anything the delivery path pushes to registered sinks.
type ChatEvent interface {
	ChatID() string
}

// MessageReceived wraps a normalized message accepted into the timeline.
type MessageReceived struct {
	Chat    string
	Message domain.Message
}

func (e MessageReceived) ChatID() string { return e.Chat }

// ParticipantJoined signals a new participant on the conversation.
type ParticipantJoined struct {
	Chat          string
	ParticipantID string
	DisplayName   string
	Role          domain.Role
	At            time.Time
}

func (e ParticipantJoined) ChatID() string { return e.Chat }

type ParticipantLeft struct {
	Chat          string
	ParticipantID string
	DisplayName   string
	Role          domain.Role
	At            time.Time
}

func (e ParticipantLeft) ChatID() string { return e.Chat }

// TypingStarted is emitted while the remote participant is composing.
type TypingStarted struct {
	Chat          string
	ParticipantID string
	Role          domain.Role
	At            time.Time
}

func (e TypingStarted) ChatID() string { return e.Chat }

// ChatEnded forces the session manager into the ended state.
type ChatEnded struct {
	Chat string
	At   time.Time
}

func (e ChatEnded) ChatID() string { return e.Chat }

// ConnectionAck confirms the subscribe frame was accepted by the backend.
type ConnectionAck struct {
	Chat string
	At   time.Time
}

func (e ConnectionAck) ChatID() string { return e.Chat }

// ConnectionLost is the terminal failure surfaced after reconnection
// attempts are exhausted. The session is unusable until a new one is started.
type ConnectionLost struct {
	Chat   string
	Reason string
	At     time.Time
}

func (e ConnectionLost) ChatID() string { return e.Chat }
