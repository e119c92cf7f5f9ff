// Package observability tracks counters of the delivery path and exposes
// periodic health reporting.
package observability

import (
	"sync/atomic"
	"time"
)

// SessionStats is a point-in-time snapshot of the counters.
type SessionStats struct {
	FramesReceived    uint64 `json:"frames_received"`
	MessagesDelivered uint64 `json:"messages_delivered"`
	DuplicatesDropped uint64 `json:"duplicates_dropped"`
	ParseFailures     uint64 `json:"parse_failures"`
	Reconnects        uint64 `json:"reconnects"`
	MessagesSent      uint64 `json:"messages_sent"`
	AttachmentsSent   uint64 `json:"attachments_sent"`
	StartedAt         time.Time
}

// SessionMetrics aggregates atomic counters updated from the delivery path
// and the session manager. Safe for concurrent use.
type SessionMetrics struct {
	framesReceived    atomic.Uint64
	messagesDelivered atomic.Uint64
	duplicatesDropped atomic.Uint64
	parseFailures     atomic.Uint64
	reconnects        atomic.Uint64
	messagesSent      atomic.Uint64
	attachmentsSent   atomic.Uint64
	startedAt         time.Time
}

func NewSessionMetrics() *SessionMetrics {
	return &SessionMetrics{startedAt: time.Now().UTC()}
}

func (m *SessionMetrics) IncrFramesReceived()    { m.framesReceived.Add(1) }
func (m *SessionMetrics) IncrMessagesDelivered() { m.messagesDelivered.Add(1) }
func (m *SessionMetrics) IncrDuplicatesDropped() { m.duplicatesDropped.Add(1) }
func (m *SessionMetrics) IncrParseFailures()     { m.parseFailures.Add(1) }
func (m *SessionMetrics) IncrReconnects()        { m.reconnects.Add(1) }
func (m *SessionMetrics) IncrMessagesSent()      { m.messagesSent.Add(1) }
func (m *SessionMetrics) IncrAttachmentsSent()   { m.attachmentsSent.Add(1) }

func (m *SessionMetrics) Snapshot() SessionStats {
	return SessionStats{
		FramesReceived:    m.framesReceived.Load(),
		MessagesDelivered: m.messagesDelivered.Load(),
		DuplicatesDropped: m.duplicatesDropped.Load(),
		ParseFailures:     m.parseFailures.Load(),
		Reconnects:        m.reconnects.Load(),
		MessagesSent:      m.messagesSent.Load(),
		AttachmentsSent:   m.attachmentsSent.Load(),
		StartedAt:         m.startedAt,
	}
}
