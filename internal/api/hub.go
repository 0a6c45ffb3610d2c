package api

import (
	"sync"

	"github.com/gorilla/websocket"
)

const clientOutboundCap = 32

// hub fans out block/transaction acceptance notifications to every
// connected /events/ws client. A message for a slow client whose outbound
// buffer is full is dropped for that client, rather than allowed to block
// the fan-out for everyone else; the client stays connected.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn     *websocket.Conn
	outbound chan any
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn, outbound: make(chan any, clientOutboundCap)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

func (h *hub) unregister(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	close(client.outbound)
	client.conn.Close()
}

func (h *hub) broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.outbound <- msg:
		default:
			// slow consumer: drop the message rather than block the hub.
		}
	}
}
