//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
// Package services exposes the public chat session API. The ChatService is
// the exclusive owner of the transport connection and the session slot.
package services

import (
	"chat-bridge/backend"
	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/domain/event"
	errs "chat-bridge/errors"
	"chat-bridge/moderation"
	"chat-bridge/observability"
	"chat-bridge/projection"
	"chat-bridge/runtime"
	"chat-bridge/session"
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const disconnectTimeout = 5 * time.Second

type IChatService interface {
	StartSession(ctx context.Context, attributes map[string]string) (domain.Session, error)
	SendMessage(ctx context.Context, content string) error
	SendAttachment(ctx context.Context, attachment domain.Attachment) error
	GetHistory(ctx context.Context, maxResults int) ([]domain.Message, error)
	EndSession(ctx context.Context) error
	Subscribe(sink contract.EventSink) contract.Subscription
	OnStateChange(fn func(domain.ConnectionState)) contract.Subscription
	State() domain.ConnectionState
	Messages() []domain.Message
	Session() (domain.Session, bool)
}

// Config bounds the session manager's asynchronous operations.
type Config struct {
	ConnectTimeout time.Duration
	SinkTimeout    time.Duration
	RetryPolicy    runtime.RetryPolicy
}

// ChatService orchestrates transport, session store, normalization and
// reconnection behind a serialized public API. Mutating operations are
// queued on one mutex; EndSession cancels the per-session context first so
// an in-flight send fails with a session-ended error instead of staying
// silently pending.
type ChatService struct {
	mu  sync.Mutex
	log *slog.Logger

	backend   contract.Backend
	transport contract.Transport
	moderator *moderation.Moderator
	metrics   *observability.SessionMetrics

	store      *session.Store
	timeline   *projection.Timeline
	normalizer projection.Normalizer
	reconnect  *runtime.ReconnectController
	publisher  *runtime.Publisher
	dispatcher *runtime.Dispatcher

	connectTimeout time.Duration

	ctxMu         sync.Mutex
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
}

func NewChatService(log *slog.Logger, be contract.Backend, tr contract.Transport,
	moderator *moderation.Moderator, metrics *observability.SessionMetrics, cfg Config) *ChatService {
	store := session.NewStore()
	timeline := projection.NewTimeline()
	normalizer := projection.NewNormalizer(log)
	publisher := runtime.NewPublisher(log, cfg.SinkTimeout)
	reconnect := runtime.NewReconnectController(log, tr, cfg.RetryPolicy, metrics)
	dispatcher := runtime.NewDispatcher(log, normalizer, timeline, publisher, metrics, store)

	s := &ChatService{
		log:            log,
		backend:        be,
		transport:      tr,
		moderator:      moderator,
		metrics:        metrics,
		store:          store,
		timeline:       timeline,
		normalizer:     normalizer,
		reconnect:      reconnect,
		publisher:      publisher,
		dispatcher:     dispatcher,
		connectTimeout: cfg.ConnectTimeout,
	}
	dispatcher.SetOnChatEnded(s.handleChatEnded)
	reconnect.SetOnTerminal(s.handleTerminalFailure)
	tr.OnFrame(dispatcher.HandleFrame)
	return s
}

// Worker exposes the reconnection controller for supervision.
func (s *ChatService) Worker() contract.Worker {
	return s.reconnect
}

// StartSession requests a new conversation, opens the transport against
// its streaming endpoint and waits for the controller to report connected.
// Any prior session is ended first.
func (s *ChatService) StartSession(ctx context.Context, attributes map[string]string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := s.store.Get(); active {
		s.endLocked(ctx, true)
	}

	started, err := s.backend.StartChat(ctx, attributes)
	if err != nil {
		return domain.Session{}, errs.NewSessionError(errs.SessionBackendRejected, err)
	}
	sess := domain.Session{
		ConnectionToken:   started.ConnectionToken,
		TransportEndpoint: started.TransportEndpoint,
		ChatID:            started.ChatID,
		ParticipantToken:  started.ParticipantToken,
		ParticipantID:     started.ParticipantID,
	}

	s.timeline.Reset()
	s.store.Set(sess)
	s.resetSessionCtx()

	if err := s.reconnect.Connect(ctx, sess); err != nil {
		s.abortStartLocked()
		return domain.Session{}, errs.NewSessionError(errs.SessionTimeout, err)
	}
	if err := s.reconnect.WaitConnected(ctx, s.connectTimeout); err != nil {
		s.abortStartLocked()
		return domain.Session{}, err
	}

	s.log.Info("Chat session started", "chat_id", sess.ChatID, "participant_id", sess.ParticipantID)
	return sess, nil
}

// SendMessage submits text. Fire-and-forget from the caller's view:
// delivery confirmation, if any, arrives asynchronously on the stream.
func (s *ChatService) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.Get()
	if !ok || s.reconnect.State() != domain.StateConnected {
		return errs.NewSessionError(errs.SessionNotConnected, nil)
	}

	if s.moderator != nil {
		content = s.moderator.Mask(content)
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.backend.PostMessage(opCtx, creds(sess), content, "text/plain"); err != nil {
		return s.asSessionError(err, errs.SessionBackendRejected)
	}
	s.metrics.IncrMessagesSent()
	return nil
}

// SendAttachment performs the three-step exchange: request an upload slot,
// push the bytes, then submit the reference message. The reference goes
// last, so a failed step never leaves a partially-sent attachment visible.
func (s *ChatService) SendAttachment(ctx context.Context, attachment domain.Attachment) error {
	if len(attachment.Data) == 0 || attachment.Name == "" {
		return errs.ErrEmptyAttachment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.Get()
	if !ok || s.reconnect.State() != domain.StateConnected {
		return errs.NewSessionError(errs.SessionNotConnected, nil)
	}

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(attachment.Data).String()
	}
	size := attachment.Size
	if size == 0 {
		size = int64(len(attachment.Data))
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	slot, err := s.backend.RequestUpload(opCtx, creds(sess), attachment.Name, size, contentType)
	if err != nil {
		return s.asSessionError(err, errs.SessionUploadRejected)
	}
	if err := s.backend.Upload(opCtx, slot, attachment.Name, attachment.Data); err != nil {
		return s.asSessionError(err, errs.SessionUploadRejected)
	}
	if err := s.backend.PostMessage(opCtx, creds(sess), slot.AttachmentID, backend.AttachmentContentType); err != nil {
		return s.asSessionError(err, errs.SessionUploadRejected)
	}

	s.metrics.IncrAttachmentsSent()
	return nil
}

// GetHistory fetches the backend transcript and merges it into the
// already-delivered sequence, deduplicating by ID. Newly discovered
// messages are published like streamed ones.
func (s *ChatService) GetHistory(ctx context.Context, maxResults int) ([]domain.Message, error) {
	if maxResults <= 0 {
		return nil, errs.ErrInvalidMaxResults
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.Get()
	if !ok {
		return nil, errs.NewSessionError(errs.SessionNotConnected, nil)
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	items, err := s.backend.Transcript(opCtx, creds(sess), maxResults)
	if err != nil {
		return nil, s.asSessionError(err, errs.SessionBackendRejected)
	}

	added := s.timeline.Merge(s.normalizer.Transcript(items))
	for _, msg := range added {
		s.metrics.IncrMessagesDelivered()
		s.publisher.Publish(opCtx, event.MessageReceived{Chat: sess.ChatID, Message: msg})
	}
	return s.timeline.Snapshot(), nil
}

// EndSession notifies the backend, closes the transport and clears the
// session slot. Idempotent; calling it without an active session is a
// no-op and it never fails.
func (s *ChatService) EndSession(ctx context.Context) error {
	// Cancel in-flight operations before queueing on the mutex so they
	// fail with session-ended instead of staying pending.
	s.cancelSessionCtx()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(ctx, true)
	return nil
}

func (s *ChatService) Subscribe(sink contract.EventSink) contract.Subscription {
	return s.publisher.Subscribe(sink)
}

func (s *ChatService) OnStateChange(fn func(domain.ConnectionState)) contract.Subscription {
	return s.reconnect.OnStateChange(fn)
}

func (s *ChatService) State() domain.ConnectionState {
	return s.reconnect.State()
}

// Messages returns the ordered, deduplicated sequence delivered so far.
func (s *ChatService) Messages() []domain.Message {
	return s.timeline.Snapshot()
}

func (s *ChatService) Session() (domain.Session, bool) {
	return s.store.Get()
}

// endLocked tears the current session down. Backend disconnect failures
// are logged; local teardown always completes.
func (s *ChatService) endLocked(ctx context.Context, notifyBackend bool) {
	sess, ok := s.store.Get()
	if !ok {
		return
	}

	s.reconnect.Shutdown()
	if notifyBackend {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
		if err := s.backend.Disconnect(dctx, creds(sess)); err != nil {
			s.log.Warn("Backend disconnect failed", "chat_id", sess.ChatID, "error", err)
		}
		cancel()
	}
	_ = s.transport.Close()
	s.store.Clear()
	s.cancelSessionCtx()
	s.log.Info("Chat session ended", "chat_id", sess.ChatID)
}

// abortStartLocked rolls a failed StartSession back without notifying the
// backend twice.
func (s *ChatService) abortStartLocked() {
	s.reconnect.Shutdown()
	_ = s.transport.Close()
	s.store.Clear()
	s.cancelSessionCtx()
}

// handleChatEnded reacts to the backend declaring the conversation over:
// ended state, transport closed, no disconnect call.
func (s *ChatService) handleChatEnded() {
	s.cancelSessionCtx()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(context.Background(), false)
}

// handleTerminalFailure surfaces exhausted reconnection attempts to the
// subscribers as a connection-lost event.
func (s *ChatService) handleTerminalFailure(err error) {
	var chatID string
	if sess, ok := s.store.Get(); ok {
		chatID = sess.ChatID
	}
	s.log.Error("Connection lost for good", "chat_id", chatID, "error", err)
	s.publisher.Publish(context.Background(), event.ConnectionLost{
		Chat:   chatID,
		Reason: err.Error(),
		At:     time.Now().UTC(),
	})
}

// opCtx merges the caller context with the session lifetime, so EndSession
// cancels whatever is in flight.
func (s *ChatService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	s.ctxMu.Lock()
	sessionCtx := s.sessionCtx
	s.ctxMu.Unlock()

	if sessionCtx == nil {
		return context.WithCancel(ctx)
	}
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sessionCtx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func (s *ChatService) resetSessionCtx() {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	if s.sessionCancel != nil {
		s.sessionCancel()
	}
	s.sessionCtx, s.sessionCancel = context.WithCancel(context.Background())
}

func (s *ChatService) cancelSessionCtx() {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	if s.sessionCancel != nil {
		s.sessionCancel()
	}
}

// asSessionError classifies an operation failure: a send interrupted by
// EndSession becomes session-ended, everything else keeps the given code.
func (s *ChatService) asSessionError(err error, code errs.SessionCode) error {
	s.ctxMu.Lock()
	sessionEnded := s.sessionCtx != nil && s.sessionCtx.Err() != nil
	s.ctxMu.Unlock()

	if sessionEnded && stderrors.Is(err, context.Canceled) {
		return errs.NewSessionError(errs.SessionEnded, err)
	}
	return errs.NewSessionError(code, err)
}

func creds(sess domain.Session) contract.Credentials {
	return contract.Credentials{
		ConnectionToken:  sess.ConnectionToken,
		ParticipantToken: sess.ParticipantToken,
	}
}
