// Package domain contains core concepts of the chat bridge.
// This file defines the canonical Message shape delivered to the application.
// Messages are immutable and never replaced after delivery.
package domain

import (
	"time"
)

// Kind discriminates the payload carried by a Message.
type Kind string

const (
	KindMessage    Kind = "message"
	KindEvent      Kind = "event"
	KindAttachment Kind = "attachment"
)

// Role identifies which side of the conversation authored a Message.
type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

// Message represents one unit of conversation content, inbound or outbound.
// ID is backend-assigned and unique within a session.
// At is the backend-assigned absolute time used for ordering.
type Message struct {
	ID            string
	Kind          Kind
	Content       string
	ContentType   string
	ParticipantID string
	Role          Role
	DisplayName   string
	Language      string // ISO 639-3 code detected on plain text, empty otherwise
	At            time.Time
}

// IsAttachment reports whether the content is an attachment reference
// rather than displayable text.
func (m Message) IsAttachment() bool {
	return m.Kind == KindAttachment
}
