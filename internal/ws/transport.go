package ws

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Recv when the peer has gone away.
var ErrClosed = errors.New("transport closed")

// Transport is the bidirectional byte channel the gateway adapts. The core
// never sees websocket framing; tests substitute an in-memory pipe.
type Transport interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Ping() error
	Close() error
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 4096
)

// wsTransport implements Transport over a gorilla websocket connection.
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(maxMsgSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Recv() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, ErrClosed
	}
	return data, nil
}

func (t *wsTransport) Ping() error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return t.conn.Close()
}
