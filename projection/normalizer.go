package projection

import (
	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/domain/event"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

// Raw item types on the message channel.
const (
	rawTypeMessage    = "MESSAGE"
	rawTypeEvent      = "EVENT"
	rawTypeAttachment = "ATTACHMENT"
)

// Raw event types on the event channel.
const (
	rawEventParticipantJoined = "PARTICIPANT_JOINED"
	rawEventParticipantLeft   = "PARTICIPANT_LEFT"
	rawEventTyping            = "TYPING"
	rawEventChatEnded         = "CHAT_ENDED"
	rawEventConnectionAck     = "CONNECTION_ACK"
)

const plainText = "text/plain"

// rawItem is the backend shape shared by stream frames and transcript
// entries.
type rawItem struct {
	ID              string `json:"Id"`
	Type            string `json:"Type"`
	Content         string `json:"Content"`
	ContentType     string `json:"ContentType"`
	ParticipantID   string `json:"ParticipantId"`
	ParticipantRole string `json:"ParticipantRole"`
	DisplayName     string `json:"DisplayName"`
	AbsoluteTime    string `json:"AbsoluteTime"`
}

// Normalizer converts raw backend payloads into canonical messages and
// events.
type Normalizer struct {
	log *slog.Logger
}

func NewNormalizer(log *slog.Logger) Normalizer {
	return Normalizer{log: log}
}

// Message maps a message-channel payload to a canonical Message. Returns
// nil for payloads that carry no message or attachment (control frames).
func (n Normalizer) Message(content json.RawMessage) (*domain.Message, error) {
	var raw rawItem
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("decoding chat payload: %w", err)
	}
	return n.fromRaw(raw)
}

// Event classifies an event-channel payload. Returns nil for event types
// the bridge does not track.
func (n Normalizer) Event(chatID string, content json.RawMessage) (event.ChatEvent, error) {
	var raw rawItem
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("decoding event payload: %w", err)
	}

	at, err := parseAbsoluteTime(raw.AbsoluteTime)
	if err != nil {
		at = time.Now().UTC()
	}

	switch raw.Type {
	case rawEventParticipantJoined:
		return event.ParticipantJoined{
			Chat:          chatID,
			ParticipantID: raw.ParticipantID,
			DisplayName:   raw.DisplayName,
			Role:          mapRole(raw.ParticipantRole),
			At:            at,
		}, nil
	case rawEventParticipantLeft:
		return event.ParticipantLeft{
			Chat:          chatID,
			ParticipantID: raw.ParticipantID,
			DisplayName:   raw.DisplayName,
			Role:          mapRole(raw.ParticipantRole),
			At:            at,
		}, nil
	case rawEventTyping:
		return event.TypingStarted{
			Chat:          chatID,
			ParticipantID: raw.ParticipantID,
			Role:          mapRole(raw.ParticipantRole),
			At:            at,
		}, nil
	case rawEventChatEnded:
		return event.ChatEnded{Chat: chatID, At: at}, nil
	case rawEventConnectionAck:
		return event.ConnectionAck{Chat: chatID, At: at}, nil
	default:
		n.log.Debug("Untracked event type", "type", raw.Type)
		return nil, nil
	}
}

// Transcript normalizes a raw transcript batch. Entries that carry no
// message or fail to parse are dropped with a log line; one bad entry
// never loses the rest of the batch.
func (n Normalizer) Transcript(items []contract.TranscriptItem) []domain.Message {
	raws := lo.Map(items, func(item contract.TranscriptItem, _ int) rawItem {
		return rawItem(item)
	})

	var messages []domain.Message
	for _, raw := range raws {
		msg, err := n.fromRaw(raw)
		if err != nil {
			n.log.Warn("Dropping transcript entry", "id", raw.ID, "error", err)
			continue
		}
		if msg != nil {
			messages = append(messages, *msg)
		}
	}
	return messages
}

func (n Normalizer) fromRaw(raw rawItem) (*domain.Message, error) {
	var kind domain.Kind
	switch raw.Type {
	case rawTypeMessage:
		kind = domain.KindMessage
	case rawTypeAttachment:
		kind = domain.KindAttachment
	case rawTypeEvent:
		// Pure control entry, nothing to deliver as content.
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown item type %q", raw.Type)
	}

	if raw.ID == "" {
		return nil, fmt.Errorf("item without ID")
	}
	at, err := parseAbsoluteTime(raw.AbsoluteTime)
	if err != nil {
		return nil, err
	}

	msg := domain.Message{
		ID:            raw.ID,
		Kind:          kind,
		Content:       raw.Content,
		ContentType:   raw.ContentType,
		ParticipantID: raw.ParticipantID,
		Role:          mapRole(raw.ParticipantRole),
		DisplayName:   raw.DisplayName,
		At:            at,
	}
	if kind == domain.KindMessage && raw.ContentType == plainText {
		msg.Language = detectLanguage(raw.Content)
	}
	return &msg, nil
}

// detectLanguage annotates plain text with its ISO 639-3 code. Unreliable
// detections (short or mixed content) stay unannotated.
func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return whatlanggo.LangToString(info.Lang)
}

func mapRole(raw string) domain.Role {
	switch raw {
	case "AGENT":
		return domain.RoleAgent
	case "CUSTOMER":
		return domain.RoleCustomer
	default:
		return domain.RoleSystem
	}
}

func parseAbsoluteTime(value string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing AbsoluteTime %q: %w", value, err)
	}
	return at, nil
}
