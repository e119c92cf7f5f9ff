package runtime

import (
	"chat-bridge/contract"
	"chat-bridge/domain"
	errs "chat-bridge/errors"
	"chat-bridge/observability"
	"chat-bridge/transport"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ReconnectController keeps the transport alive across transient failures
// without application involvement.
//
// State machine: disconnected -> connecting -> connected. An unexpected
// close while not intentionally ending moves connected -> reconnecting ->
// connecting -> connected on success, or reconnecting -> disconnected once
// the attempts are exhausted. A deliberate Shutdown short-circuits any
// retrying and pins the state to ended.
//
// The controller runs as a supervised worker consuming the transport's
// lifecycle notifications; all transitions happen on that single path.
type ReconnectController struct {
	log       *slog.Logger
	transport contract.Transport
	policy    RetryPolicy
	metrics   *observability.SessionMetrics

	mu          sync.Mutex
	state       domain.ConnectionState
	changed     chan struct{}
	endpoint    string
	token       string
	intentional bool
	stopCh      chan struct{}
	lastErr     error
	nextSub     int
	subs        map[int]func(domain.ConnectionState)
	onTerminal  func(error)
}

func NewReconnectController(log *slog.Logger, tr contract.Transport,
	policy RetryPolicy, metrics *observability.SessionMetrics) *ReconnectController {
	return &ReconnectController{
		log:       log,
		transport: tr,
		policy:    policy,
		metrics:   metrics,
		state:     domain.StateDisconnected,
		changed:   make(chan struct{}),
		subs:      make(map[int]func(domain.ConnectionState)),
	}
}

// SetOnTerminal registers the callback fired when retries are exhausted.
func (c *ReconnectController) SetOnTerminal(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTerminal = fn
}

// OnStateChange registers a state observer. Observers run synchronously
// with the transition; no intermediate state is skipped.
func (c *ReconnectController) OnStateChange(fn func(domain.ConnectionState)) contract.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return &subscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}}
}

func (c *ReconnectController) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect binds the controller to a fresh session and opens the transport.
// The opened notification completes the handshake on the worker loop.
func (c *ReconnectController) Connect(ctx context.Context, sess domain.Session) error {
	c.mu.Lock()
	c.endpoint = sess.TransportEndpoint
	c.token = sess.ConnectionToken
	c.intentional = false
	c.lastErr = nil
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	c.setState(domain.StateConnecting)
	if err := c.transport.Open(ctx, sess.TransportEndpoint); err != nil {
		c.setLastErr(err)
		c.setState(domain.StateDisconnected)
		return err
	}
	return nil
}

// WaitConnected blocks until the controller reports connected, the bound
// timeout elapses, or the connection attempt ends in a terminal state.
func (c *ReconnectController) WaitConnected(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		state := c.state
		changed := c.changed
		lastErr := c.lastErr
		c.mu.Unlock()

		switch state {
		case domain.StateConnected:
			return nil
		case domain.StateDisconnected, domain.StateEnded:
			return errs.NewSessionError(errs.SessionTimeout, lastErr)
		}

		select {
		case <-ctx.Done():
			return errs.NewSessionError(errs.SessionTimeout, ctx.Err())
		case <-deadline.C:
			return errs.NewSessionError(errs.SessionTimeout, nil)
		case <-changed:
		}
	}
}

// Shutdown marks the close as deliberate: any in-progress retrying stops
// and no reconnection is attempted afterwards.
func (c *ReconnectController) Shutdown() {
	c.mu.Lock()
	alreadyIntentional := c.intentional
	c.intentional = true
	if c.stopCh != nil && !alreadyIntentional {
		close(c.stopCh)
	}
	c.mu.Unlock()

	c.setState(domain.StateEnded)
}

// Run consumes transport lifecycle notifications. It owns every state
// transition and the retry loop.
func (c *ReconnectController) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-c.transport.Notifications():
			if !ok {
				return nil
			}
			switch n.Kind {
			case transport.NotifOpened:
				if !c.subscribe() && !c.isIntentional() {
					c.retry(ctx)
				}
			case transport.NotifClosed:
				if n.Reason == transport.CloseNormal || c.isIntentional() {
					continue
				}
				c.setLastErr(n.Err)
				c.retry(ctx)
			}
		}
	}
}

// subscribe re-sends the authenticate frame bound to the current
// connection token. It must succeed before connected is reported.
func (c *ReconnectController) subscribe() bool {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if err := c.transport.Send(transport.NewSubscribeFrame(token)); err != nil {
		c.log.Error("Failed to send subscribe frame", "error", err)
		c.setLastErr(err)
		_ = c.transport.Close()
		return false
	}
	c.setState(domain.StateConnected)
	return true
}

// retry re-opens the transport with capped exponential backoff, bounded by
// the policy's attempt budget. A successful open hands control back to Run,
// which completes the subscribe handshake.
func (c *ReconnectController) retry(ctx context.Context) {
	c.setState(domain.StateReconnecting)

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		delay := c.policy.NextDelay(attempt)
		c.log.Info(fmt.Sprintf("Reconnect attempt %d/%d in %s", attempt, c.policy.MaxAttempts, delay))

		select {
		case <-ctx.Done():
			return
		case <-c.stop():
			c.log.Info("Reconnection cancelled by session end")
			return
		case <-time.After(delay):
		}
		if c.isIntentional() {
			return
		}

		c.setState(domain.StateConnecting)
		c.metrics.IncrReconnects()
		err := c.transport.Open(ctx, c.currentEndpoint())
		if err == nil {
			return
		}
		lastErr = err
		c.log.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)
		c.setState(domain.StateReconnecting)
	}

	terminal := fmt.Errorf("reconnect attempts exhausted after %d tries: %w", c.policy.MaxAttempts, lastErr)
	c.setLastErr(terminal)
	c.setState(domain.StateDisconnected)

	c.mu.Lock()
	onTerminal := c.onTerminal
	c.mu.Unlock()
	if onTerminal != nil {
		onTerminal(terminal)
	}
}

func (c *ReconnectController) setState(state domain.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	close(c.changed)
	c.changed = make(chan struct{})
	observers := make([]func(domain.ConnectionState), 0, len(c.subs))
	for _, fn := range c.subs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	c.log.Debug("Connection state changed", "state", state)
	for _, fn := range observers {
		fn(state)
	}
}

func (c *ReconnectController) setLastErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
	}
}

func (c *ReconnectController) isIntentional() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional
}

func (c *ReconnectController) currentEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// stop returns the cancellation channel of the current session, or a
// never-closing channel before the first Connect.
func (c *ReconnectController) stop() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh == nil {
		return make(chan struct{})
	}
	return c.stopCh
}
