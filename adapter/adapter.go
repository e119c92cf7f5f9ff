// Package adapter bridges the chat service to a reactive application
// surface: a single observable snapshot plus pub-sub registration with
// cancellable handles.
package adapter

import (
	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/domain/event"
	"chat-bridge/services"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Snapshot is the immutable view handed to the application on every read.
type Snapshot struct {
	State     domain.ConnectionState
	Messages  []domain.Message
	LastError string
}

// ChatAdapter mirrors the session into application-facing state. It is an
// event sink itself, so delivered messages and lifecycle events update the
// snapshot without polling.
type ChatAdapter struct {
	log     *slog.Logger
	service services.IChatService

	mu        sync.RWMutex
	lastError string

	eventSub contract.Subscription
	stateSub contract.Subscription

	listenerMu sync.Mutex
	nextID     int
	listeners  map[int]func(Snapshot)
}

func NewChatAdapter(log *slog.Logger, service services.IChatService) *ChatAdapter {
	a := &ChatAdapter{
		log:       log,
		service:   service,
		listeners: make(map[int]func(Snapshot)),
	}
	a.eventSub = service.Subscribe(a)
	a.stateSub = service.OnStateChange(func(domain.ConnectionState) {
		a.notify()
	})
	return a
}

// Consume implements contract.EventSink. Connection loss is surfaced as the
// snapshot's last error; everything else only triggers a refresh.
func (a *ChatAdapter) Consume(_ context.Context, evt event.ChatEvent) error {
	if lost, ok := evt.(event.ConnectionLost); ok {
		a.setError(fmt.Sprintf("connection lost: %s", lost.Reason))
		return nil
	}
	a.notify()
	return nil
}

// Snapshot returns the current state, the ordered message sequence and the
// last recorded error.
func (a *ChatAdapter) Snapshot() Snapshot {
	a.mu.RLock()
	lastError := a.lastError
	a.mu.RUnlock()

	return Snapshot{
		State:     a.service.State(),
		Messages:  a.service.Messages(),
		LastError: lastError,
	}
}

// OnChange registers a listener invoked after every snapshot-affecting
// event. The handle detaches exactly one registration.
func (a *ChatAdapter) OnChange(fn func(Snapshot)) contract.Subscription {
	a.listenerMu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.listenerMu.Unlock()

	return contract.SubscriptionFunc(func() {
		a.listenerMu.Lock()
		defer a.listenerMu.Unlock()
		delete(a.listeners, id)
	})
}

func (a *ChatAdapter) StartChat(ctx context.Context, attributes map[string]string) error {
	_, err := a.service.StartSession(ctx, attributes)
	a.record(err)
	return err
}

func (a *ChatAdapter) SendMessage(ctx context.Context, content string) error {
	err := a.service.SendMessage(ctx, content)
	a.record(err)
	return err
}

func (a *ChatAdapter) SendAttachment(ctx context.Context, attachment domain.Attachment) error {
	err := a.service.SendAttachment(ctx, attachment)
	a.record(err)
	return err
}

func (a *ChatAdapter) LoadHistory(ctx context.Context, maxResults int) error {
	_, err := a.service.GetHistory(ctx, maxResults)
	a.record(err)
	return err
}

func (a *ChatAdapter) EndChat(ctx context.Context) error {
	err := a.service.EndSession(ctx)
	a.record(err)
	return err
}

// ClearError resets the last recorded error without touching the rest of
// the snapshot.
func (a *ChatAdapter) ClearError() {
	a.setError("")
}

// Close detaches the adapter from the service. Listeners registered through
// OnChange stop firing afterwards.
func (a *ChatAdapter) Close() {
	a.eventSub.Cancel()
	a.stateSub.Cancel()

	a.listenerMu.Lock()
	a.listeners = make(map[int]func(Snapshot))
	a.listenerMu.Unlock()
}

func (a *ChatAdapter) record(err error) {
	if err != nil {
		a.setError(err.Error())
		return
	}
	a.notify()
}

func (a *ChatAdapter) setError(message string) {
	a.mu.Lock()
	a.lastError = message
	a.mu.Unlock()
	a.notify()
}

func (a *ChatAdapter) notify() {
	snapshot := a.Snapshot()

	a.listenerMu.Lock()
	listeners := make([]func(Snapshot), 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
