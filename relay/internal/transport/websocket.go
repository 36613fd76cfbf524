// Package transport adapts a websocket connection to session.Transport.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/telhawk-systems/vibration-stack/relay/internal/session"
)

// maxMessageSize bounds inbound viewer messages; selections are tiny.
const maxMessageSize = 4096

// WebSocket is a session.Transport over nhooyr.io/websocket.
//
// A websocket Read cancelled through its context closes the connection, so
// a single goroutine reads for the lifetime of the connection and Receive
// waits on its channel instead.
type WebSocket struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	inbox   chan []byte
	done    chan struct{}
	readErr error

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Accept upgrades the request. originPatterns follows
// websocket.AcceptOptions; "*" accepts any origin.
func Accept(w http.ResponseWriter, r *http.Request, originPatterns []string) (*WebSocket, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}
	return New(conn), nil
}

// New wraps an established connection and starts its reader.
func New(conn *websocket.Conn) *WebSocket {
	conn.SetReadLimit(maxMessageSize)
	ctx, cancel := context.WithCancel(context.Background())
	ws := &WebSocket{
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan []byte),
		done:   make(chan struct{}),
	}
	go ws.readLoop()
	return ws
}

func (ws *WebSocket) readLoop() {
	defer close(ws.done)
	for {
		_, data, err := ws.conn.Read(ws.ctx)
		if err != nil {
			ws.readErr = err
			return
		}
		select {
		case ws.inbox <- data:
		case <-ws.ctx.Done():
			ws.readErr = ws.ctx.Err()
			return
		}
	}
}

// Receive returns the next message, session.ErrNoMessage after timeout, or
// the reason the connection ended.
func (ws *WebSocket) Receive(timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case msg := <-ws.inbox:
		return msg, nil
	case <-ws.done:
		return nil, classify(ws.readErr)
	case <-t.C:
		return nil, session.ErrNoMessage
	}
}

// Send writes v as a JSON text message.
func (ws *WebSocket) Send(ctx context.Context, v any) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	select {
	case <-ws.done:
		return classify(ws.readErr)
	default:
	}

	if err := wsjson.Write(ctx, ws.conn, v); err != nil {
		return classify(err)
	}
	return nil
}

// Close sends a normal closure and stops the reader.
func (ws *WebSocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		err = ws.conn.Close(websocket.StatusNormalClosure, "")
		ws.cancel()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

// classify maps errors that mean "the peer or we closed the connection" to
// session.ErrClosed.
func classify(err error) error {
	switch {
	case err == nil:
		return session.ErrClosed
	case websocket.CloseStatus(err) != -1,
		errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", session.ErrClosed, err)
	default:
		return err
	}
}
