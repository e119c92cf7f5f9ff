package transport

import (
	errs "chat-bridge/errors"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout    = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	pingInterval        = 30 * time.Second
	notificationBuffer  = 16
)

// WebSocket is the streaming transport. A single writer goroutine consumes
// the buffered send queue; a single reader goroutine delivers inbound
// frames to the registered handler. Open and Close may be called
// repeatedly for sequential connections, never for concurrent ones.
type WebSocket struct {
	log          *slog.Logger
	queueSize    int
	writeTimeout time.Duration
	notifs       chan Notification

	mu      sync.Mutex
	handler FrameHandler
	conn    *websocket.Conn
	sendQ   chan []byte
	done    chan struct{}
}

func NewWebSocket(log *slog.Logger, queueSize int) *WebSocket {
	return &WebSocket{
		log:          log,
		queueSize:    queueSize,
		writeTimeout: defaultWriteTimeout,
		notifs:       make(chan Notification, notificationBuffer),
	}
}

// Open dials the streaming endpoint and starts the read and write loops.
// Fails when the endpoint is unreachable or the handshake is rejected.
func (t *WebSocket) Open(ctx context.Context, endpoint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return errs.NewTransportError(errs.TransportHandshakeRejected,
			fmt.Errorf("connection already open"))
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{"chat"},
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return errs.NewTransportError(errs.TransportHandshakeRejected, err)
		}
		return errs.NewTransportError(errs.TransportUnreachable, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pingInterval + t.writeTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + t.writeTimeout))
	})

	t.conn = conn
	t.sendQ = make(chan []byte, t.queueSize)
	t.done = make(chan struct{})

	go t.readLoop(conn)
	go t.writeLoop(conn, t.sendQ, t.done)

	t.notify(Notification{Kind: NotifOpened})
	t.log.Info("Transport opened", "endpoint", endpoint)
	return nil
}

// Send queues a frame for the writer goroutine.
func (t *WebSocket) Send(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	t.mu.Lock()
	queue := t.sendQ
	connected := t.conn != nil
	t.mu.Unlock()

	if !connected {
		return errs.NewTransportError(errs.TransportNotConnected, nil)
	}
	select {
	case queue <- payload:
		return nil
	default:
		return errs.NewTransportError(errs.TransportSendBufferFull, nil)
	}
}

// OnFrame registers the single inbound frame handler.
func (t *WebSocket) OnFrame(handler FrameHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Close tears the connection down. Idempotent, always succeeds, and emits
// a closed notification with the normal reason.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return nil
	}
	conn := t.conn
	t.teardownLocked()
	t.mu.Unlock()

	deadline := time.Now().Add(t.writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()

	t.notify(Notification{Kind: NotifClosed, Reason: CloseNormal})
	t.log.Info("Transport closed")
	return nil
}

// Notifications exposes the lifecycle channel consumed by the reconnection
// controller.
func (t *WebSocket) Notifications() <-chan Notification {
	return t.notifs
}

// readLoop delivers inbound frames in arrival order. Unparseable frames
// are logged and dropped; they never stop delivery of subsequent frames.
func (t *WebSocket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.readFailed(conn, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.log.Warn("Dropping unparseable frame", "error", err)
			continue
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler != nil {
			handler(frame)
		}
	}
}

// readFailed handles the end of a read loop. A loop whose connection was
// already replaced or torn down by Close stays silent.
func (t *WebSocket) readFailed(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.teardownLocked()
	t.mu.Unlock()

	_ = conn.Close()

	reason := CloseError
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		reason = CloseTimeout
	}
	t.log.Warn("Transport connection lost", "reason", reason, "error", err)
	t.notify(Notification{Kind: NotifClosed, Reason: reason, Err: err})
}

func (t *WebSocket) writeLoop(conn *websocket.Conn, sendQ chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case payload := <-sendQ:
			_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				t.log.Error("Failed to write frame", "error", err)
			}
		case <-ticker.C:
			deadline := time.Now().Add(t.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				t.log.Debug("Ping failed", "error", err)
			}
		}
	}
}

// teardownLocked detaches the current connection. Callers hold the mutex.
func (t *WebSocket) teardownLocked() {
	t.conn = nil
	t.sendQ = nil
	close(t.done)
}

// notify never blocks the read loop: lifecycle consumers lagging behind
// lose the oldest signal rather than stalling frame delivery.
func (t *WebSocket) notify(n Notification) {
	select {
	case t.notifs <- n:
	default:
		t.log.Warn("Notification buffer full, dropping", "kind", n.Kind)
	}
}
