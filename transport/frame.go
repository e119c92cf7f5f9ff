// Package transport owns the single streaming connection to the chat
// backend. It translates wire frames to and from structured values and
// reports lifecycle changes; it never retries on its own.
package transport

import "encoding/json"

// Wire topics used by the streaming channel.
const (
	TopicSubscribe = "aws/subscribe"
	TopicChat      = "aws/chat"
	TopicEvent     = "aws/event"
	TopicHeartbeat = "aws/heartbeat"
)

// Frame is one unit of data exchanged over the streaming channel.
type Frame struct {
	Topic   string          `json:"topic"`
	Content json.RawMessage `json:"content"`
}

// FrameHandler is invoked once per inbound frame, in arrival order, on the
// single read loop. No concurrent delivery.
type FrameHandler func(frame Frame)

// NewSubscribeFrame builds the authenticate/subscribe frame that must be
// the first frame sent after every open.
func NewSubscribeFrame(connectionToken string) Frame {
	content, _ := json.Marshal(map[string]string{
		"connectionToken": connectionToken,
	})
	return Frame{Topic: TopicSubscribe, Content: content}
}

type NotificationKind string

const (
	NotifOpened NotificationKind = "opened"
	NotifClosed NotificationKind = "closed"
)

type CloseReason string

const (
	CloseNormal  CloseReason = "normal"
	CloseError   CloseReason = "error"
	CloseTimeout CloseReason = "timeout"
)

// Notification is a lifecycle signal consumed by the reconnection
// controller.
type Notification struct {
	Kind   NotificationKind
	Reason CloseReason
	Err    error
}
