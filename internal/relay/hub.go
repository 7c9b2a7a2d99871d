package relay

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"scanprint/internal/metrics"
)

// Message types on the relay channel
const (
	TypeRegisterPrinter = "register-printer"
	TypeScanRequest     = "scan-request"
	TypePrintRequest    = "print-request"
)

// Envelope is the one message shape on the wire. Fields are filled per type:
// register-printer carries sessionId, scan-request carries all three,
// print-request carries orderId and barcode.
type Envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
}

// connection is one websocket client attached to the hub
type connection struct {
	id   string
	ws   *websocket.Conn
	send chan Envelope
}

// Hub accepts scanner and printer connections and forwards scan events to
// the printer registered for the matching session. Delivery is
// fire-and-forget: no ack, no retry, and a scan-request racing ahead of its
// register is dropped, not queued.
type Hub struct {
	table    *SessionTable
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection
}

// NewHub creates a hub over the given session table
func NewHub(table *SessionTable) *Hub {
	return &Hub{
		table: table,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// phones and desk terminals connect from anywhere
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*connection),
	}
}

// Table exposes the session table, mainly for status endpoints
func (h *Hub) Table() *SessionTable {
	return h.table
}

// Handler returns the websocket endpoint
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	return mux
}

// HandleWS upgrades the request and serves the connection until it closes
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARNING: relay upgrade failed: %v", err)
		return
	}

	c := &connection{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan Envelope, 16),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	log.Printf("relay client connected: %s", c.id)

	go h.writePump(c)
	h.readPump(c)
}

// readPump dispatches incoming envelopes until the connection drops
func (h *Hub) readPump(c *connection) {
	defer h.dropConnection(c)

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}

		switch env.Type {
		case TypeRegisterPrinter:
			if env.SessionID == "" {
				continue
			}
			h.table.Register(env.SessionID, c.id)
			log.Printf("printer registered with session: %s", env.SessionID)
		case TypeScanRequest:
			h.route(env)
		default:
			log.Printf("WARNING: relay ignoring message type %q from %s", env.Type, c.id)
		}
	}
}

// route forwards a scan request to the printer bound to its session.
// No printer means the event is silently dropped; the scanner never learns
// whether delivery happened.
func (h *Hub) route(env Envelope) {
	connID, ok := h.table.Lookup(env.SessionID)
	if !ok {
		metrics.RelayDropsTotal.Inc()
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dest := h.conns[connID]
	if dest == nil {
		metrics.RelayDropsTotal.Inc()
		return
	}

	select {
	case dest.send <- Envelope{Type: TypePrintRequest, OrderID: env.OrderID, Barcode: env.Barcode}:
		metrics.RelayForwardsTotal.Inc()
	default:
		// slow printer, drop rather than block the relay
		metrics.RelayDropsTotal.Inc()
	}
}

// writePump serializes outgoing messages for one connection
func (h *Hub) writePump(c *connection) {
	for env := range c.send {
		if err := c.ws.WriteJSON(env); err != nil {
			return
		}
	}
}

// dropConnection removes the connection and its session binding, if any
func (h *Hub) dropConnection(c *connection) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; ok {
		delete(h.conns, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	if sessionID, removed := h.table.RemoveConnection(c.id); removed {
		log.Printf("printer for session %s disconnected", sessionID)
	} else {
		log.Printf("relay client disconnected: %s", c.id)
	}

	c.ws.Close()
}
