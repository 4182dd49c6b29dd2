package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway is meant to sit behind a reverse proxy that owns origin
	// checking, so the upgrade is always allowed here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTransport adapts a gorilla/websocket connection to the Transport
// interface. Sends are serialized with a mutex because gorilla's Conn
// forbids concurrent writers — the heartbeat task and the session loop
// both write to the same connection.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(m *Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(m)
}

func (t *wsTransport) Recv() (Frame, error) {
	kind, data, err := t.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	if kind == websocket.BinaryMessage {
		return Frame{Binary: data}, nil
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Frame{}, fmt.Errorf("api: decode text frame: %w", err)
	}
	return Frame{JSON: &msg}, nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// WebSocketHandler upgrades an HTTP request to a websocket at
// /ws/transcribe and hands the resulting Transport to accept, which is
// expected to run (and block on) one session's Coordinator loop.
func WebSocketHandler(accept func(Transport)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accept(newWSTransport(conn))
	}
}
