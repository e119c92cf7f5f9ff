//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-bridge/domain/event"
	"chat-bridge/transport"
	"context"
	"reflect"
	"sync"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes delivered chat events. Implementations must not block
// indefinitely: a slow sink delays subsequent delivery but never corrupts
// ordering.
type EventSink interface {
	Consume(ctx context.Context, e event.ChatEvent) error
}

// Subscription is the handle returned at registration time. Cancel is
// idempotent and makes teardown deterministic.
type Subscription interface {
	Cancel()
}

// SubscriptionFunc adapts a plain cancel function into a Subscription.
// Cancel runs the function at most once.
func SubscriptionFunc(cancel func()) Subscription {
	return &funcSubscription{cancel: cancel}
}

type funcSubscription struct {
	once   sync.Once
	cancel func()
}

func (s *funcSubscription) Cancel() {
	s.once.Do(s.cancel)
}

// Transport owns exactly one streaming connection at a time. It never
// retries on its own; the reconnection controller drives it through the
// Notifications channel.
type Transport interface {
	Open(ctx context.Context, endpoint string) error
	Send(frame transport.Frame) error
	OnFrame(handler transport.FrameHandler)
	Close() error
	Notifications() <-chan transport.Notification
}

// Backend is the REST surface of the remote chat service.
type Backend interface {
	StartChat(ctx context.Context, attributes map[string]string) (StartedChat, error)
	PostMessage(ctx context.Context, creds Credentials, content, contentType string) error
	RequestUpload(ctx context.Context, creds Credentials, fileName string, fileSize int64, contentType string) (UploadSlot, error)
	Upload(ctx context.Context, slot UploadSlot, fileName string, data []byte) error
	Transcript(ctx context.Context, creds Credentials, maxResults int) ([]TranscriptItem, error)
	Disconnect(ctx context.Context, creds Credentials) error
}

// Credentials are the two opaque tokens bound to a session.
type Credentials struct {
	ConnectionToken  string
	ParticipantToken string
}

// StartedChat mirrors the response of the chat start call.
type StartedChat struct {
	ConnectionToken   string
	TransportEndpoint string
	ChatID            string
	ParticipantToken  string
	ParticipantID     string
}

// UploadSlot is granted by the backend before the direct byte upload.
type UploadSlot struct {
	UploadURL    string
	AttachmentID string
}

// TranscriptItem is one raw entry of the durable backend transcript,
// normalized by the projection layer before reaching the application.
type TranscriptItem struct {
	ID              string `json:"Id"`
	Type            string `json:"Type"`
	Content         string `json:"Content"`
	ContentType     string `json:"ContentType"`
	ParticipantID   string `json:"ParticipantId"`
	ParticipantRole string `json:"ParticipantRole"`
	DisplayName     string `json:"DisplayName"`
	AbsoluteTime    string `json:"AbsoluteTime"`
}
