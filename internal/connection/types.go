package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	ErrTokenMismatch    = errors.New("connect called with a different token while active")
)

// AuthError reports a credential rejected during the handshake. It is
// fatal: the manager never retries it.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("push channel handshake rejected: status %d", e.Status)
}

// State is the connection manager's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// StateChange is published to watchers on every transition. Err is set
// when the transition was caused by a failure (transport drop, auth
// rejection, retries exhausted).
type StateChange struct {
	From  State
	To    State
	At    time.Time
	Epoch int // increments on each successful handshake
	Err   error
}

// TimestampedMessage wraps raw message data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// RawMessage is a message from the Connection Manager to the Event Router.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
	Epoch      int // connection epoch the message arrived in
}

// Command is a client-to-server control message (room membership).
type Command struct {
	Cmd    string     `json:"cmd"` // "join" or "leave"
	Params RoomParams `json:"params"`
}

// RoomParams identifies the room a command applies to.
type RoomParams struct {
	Room string `json:"room"`
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL          string        // push channel URL (wss://...)
	Token        string        // bearer token for the handshake
	PingTimeout  time.Duration // max time without ping before considering connection stale
	WriteTimeout time.Duration // write deadline for sends
	BufferSize   int           // message channel buffer size
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	WSURL        string        // push channel URL
	RetryDelay   time.Duration // fixed wait between reconnect attempts
	MaxAttempts  int           // reconnect attempts before surfacing a fatal disconnect
	PingTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int // buffer size for the outgoing raw message channel
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		RetryDelay:   3 * time.Second,
		MaxAttempts:  5,
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State    State
	Epoch    int
	Rooms    int
	Attempts int // reconnect attempts in the current outage, 0 while healthy
}
