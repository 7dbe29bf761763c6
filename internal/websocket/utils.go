package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// minReadWait is the idle allowance on sessions with short question slices.
	minReadWait = 5 * time.Minute
	readGrace   = time.Minute
)

// ReadWait is how long a stream may stay silent before it is dropped: one full
// question slice plus a minute of grace, never less than minReadWait. Clients
// that idle longer than a slice are expected to send a ping action.
func ReadWait(secondsPerQuestion int) time.Duration {
	wait := time.Duration(secondsPerQuestion)*time.Second + readGrace
	if wait < minReadWait {
		return minReadWait
	}
	return wait
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadMessage reads one raw message, allowing wait of silence before it.
// Decoding is left to the caller so a malformed message does not end the stream.
func ReadMessage(conn *websocket.Conn, wait time.Duration) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	_, data, err := conn.ReadMessage()
	return data, err
}
