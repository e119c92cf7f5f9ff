// Package errors defines the failure taxonomy of the chat bridge.
//
// TransportError stays inside the reconnection machinery and only surfaces
// to the application as a terminal disconnected state. SessionError and
// ValidationError are returned synchronously by the operation that raised
// them.
package errors

import "fmt"

type TransportCode string

const (
	TransportUnreachable       TransportCode = "unreachable"
	TransportHandshakeRejected TransportCode = "handshake-rejected"
	TransportNotConnected      TransportCode = "not-connected"
	TransportSendBufferFull    TransportCode = "send-buffer-full"
)

// TransportError is a connection-level failure. Never retried by the
// transport itself.
type TransportError struct {
	Code TransportCode
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport: %s", e.Code)
	}
	return fmt.Sprintf("transport: %s: %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(code TransportCode, err error) *TransportError {
	return &TransportError{Code: code, Err: err}
}

type SessionCode string

const (
	SessionBackendRejected SessionCode = "backend-rejected"
	SessionTimeout         SessionCode = "timeout"
	SessionNotConnected    SessionCode = "not-connected"
	SessionUploadRejected  SessionCode = "upload-rejected"
	SessionEnded           SessionCode = "session-ended"
)

// SessionError is a session-level failure returned to the caller of the
// operation that raised it.
type SessionError struct {
	Code SessionCode
	Err  error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session: %s", e.Code)
	}
	return fmt.Sprintf("session: %s: %v", e.Code, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func NewSessionError(code SessionCode, err error) *SessionError {
	return &SessionError{Code: code, Err: err}
}

// ValidationError reports caller-supplied bad input. No backend call is
// made when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

var (
	ErrEmptyContent      = &ValidationError{Reason: "content is empty"}
	ErrEmptyAttachment   = &ValidationError{Reason: "attachment has no data"}
	ErrInvalidMaxResults = &ValidationError{Reason: "maxResults must be positive"}
)

var ErrWorkerPanic = fmt.Errorf("worker panic")
