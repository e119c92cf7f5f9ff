package domain

// Session identifies one active conversation with the backend.
// At most one Session is live per application instance; creating a new one
// invalidates any prior one.
type Session struct {
	ConnectionToken   string // credential for the streaming channel
	TransportEndpoint string // URL of the streaming channel
	ChatID            string // backend conversation identifier
	ParticipantToken  string // credential for REST calls
	ParticipantID     string
}

// ConnectionState describes the health of the streaming channel.
// Owned by the reconnection controller, read by everyone else.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateEnded        ConnectionState = "ended"
)
