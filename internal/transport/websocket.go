// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "meowsense/internal/log"
)

const (
	broadcastQueue = 256
	writeTimeout   = 5 * time.Second
)

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport is closed")

// WebSocketTransport broadcasts each payload as JSON to every connected
// client. It is an http.Handler; mount it on the server mux.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}

	closeOnce sync.Once
	closed    bool
	sendMu    sync.RWMutex
}

// NewWebSocketTransport creates the transport and starts its broadcast
// loop.
func NewWebSocketTransport() *WebSocketTransport {
	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}
	go wst.handleBroadcasts()
	return wst
}

// ServeHTTP upgrades the request and registers the client. Clients are
// receive-only; anything they send is discarded.
func (wst *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: client connected, total: %d", total)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.removeClient(conn)
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		applog.Infof("WebSocketTransport: client disconnected, total: %d", total)
	}
}

// Clients is the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleBroadcasts() {
	defer close(wst.done)
	for data := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteJSON(data); err != nil {
				applog.Warnf("WebSocketTransport: error sending to client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Send queues data for broadcast. When the queue is full the payload is
// dropped and logged rather than blocking the caller.
func (wst *WebSocketTransport) Send(data any) error {
	wst.sendMu.RLock()
	defer wst.sendMu.RUnlock()
	if wst.closed {
		return ErrTransportClosed
	}
	select {
	case wst.broadcast <- data:
	default:
		applog.Warnf("WebSocketTransport: broadcast queue full, dropping payload")
	}
	return nil
}

// Close drains queued payloads and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	wst.closeOnce.Do(func() {
		wst.sendMu.Lock()
		wst.closed = true
		close(wst.broadcast)
		wst.sendMu.Unlock()
		<-wst.done

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()
	})
	return nil
}

var (
	_ Transport    = (*WebSocketTransport)(nil)
	_ http.Handler = (*WebSocketTransport)(nil)
)
