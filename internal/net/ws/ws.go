// Package ws is the transport: it terminates the gorilla/websocket
// connection, performs the handshake, and turns each inbound frame into a
// call into internal/dispatch. It implements dispatch.Sender and
// sessionmanager.SocketSender so the core never imports gorilla/websocket
// directly.
package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"realms/server/internal/dispatch"
	loggingnetwork "realms/server/logging/network"
	"realms/server/logging"
)

const (
	writeQueueSize = 32
	pingInterval   = 25 * time.Second
)

// inboundEnvelope is the wire shape of a client frame.
type inboundEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// outboundEnvelope mirrors dispatch.Envelope for encoding.
type outboundEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// connection is the per-socket state: a live websocket plus a bounded
// outbound queue that serializes writes in the order Send is called, per
// §5's "per-socket outbound queue" requirement.
type connection struct {
	socketID string
	conn     *websocket.Conn
	outbound chan outboundEnvelope
	closeOnce sync.Once
	done     chan struct{}
}

func (c *connection) enqueue(env outboundEnvelope) {
	select {
	case c.outbound <- env:
	default:
		// backlog full: the socket is not draining, drop rather than block
		// the calling goroutine, which also delivers to other sockets.
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case env, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.closeNow()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closeNow()
				return
			}
		}
	}
}

func (c *connection) closeNow() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Handler upgrades HTTP connections to websockets and drives the read/write
// loops for each one, delegating all protocol logic to a Dispatcher.
type Handler struct {
	upgrader   websocket.Upgrader
	dispatcher *dispatch.Dispatcher
	pub        logging.Publisher
	idleTimeout time.Duration

	maxPerAddr int
	mu         sync.Mutex
	perAddr    map[string]int

	connMu sync.RWMutex
	conns  map[string]*connection
}

// NewHandler constructs a Handler with no Dispatcher; Bind attaches one.
// The Dispatcher itself must be constructed with this Handler passed as its
// Sender, so the two are wired together by the caller (see internal/app).
func NewHandler(pub logging.Publisher, idleTimeout time.Duration, maxPerAddr int) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pub:         pub,
		idleTimeout: idleTimeout,
		maxPerAddr:  maxPerAddr,
		perAddr:     make(map[string]int),
		conns:       make(map[string]*connection),
	}
}

// Bind attaches the dispatcher this handler delegates to. Kept separate
// from NewHandler because Dispatcher.New itself takes the Handler as its
// Sender — the two constructors are mutually dependent.
func (h *Handler) Bind(d *dispatch.Dispatcher) {
	h.dispatcher = d
}

// Send implements dispatch.Sender.
func (h *Handler) Send(socketID string, event string, payload any) {
	h.connMu.RLock()
	c, ok := h.conns[socketID]
	h.connMu.RUnlock()
	if !ok {
		return
	}
	c.enqueue(outboundEnvelope{Event: event, Payload: payload})
}

// SendKicked implements sessionmanager.SocketSender.
func (h *Handler) SendKicked(socketID string, reason string) {
	h.Send(socketID, dispatch.OutSessionTerminated, dispatch.SessionTerminatedPayload{Code: dispatch.CodeOwnerKicked, Reason: reason})
}

// SendTerminated implements sessionmanager.SocketSender.
func (h *Handler) SendTerminated(socketID string, code string, reason string) {
	h.Send(socketID, dispatch.OutSessionTerminated, dispatch.SessionTerminatedPayload{Code: code, Reason: reason})
}

// Close implements sessionmanager.SocketSender.
func (h *Handler) Close(socketID string) {
	h.connMu.Lock()
	c, ok := h.conns[socketID]
	delete(h.conns, socketID)
	h.connMu.Unlock()
	if ok {
		c.closeNow()
	}
}

// ServeHTTP upgrades the connection, runs the handshake, and — on success —
// drives the read loop until disconnect or idle timeout.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr := clientAddr(r)
	if !h.acquireAddrSlot(addr) {
		http.Error(w, "too many connections from this address", http.StatusTooManyRequests)
		return
	}
	defer h.releaseAddrSlot(addr)

	rawConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	socketID := uuid.NewString()
	token := r.URL.Query().Get("token")
	claimedUID := r.URL.Query().Get("uid")

	ctx := r.Context()
	claimedUserID, err := uuid.Parse(claimedUID)
	if err != nil || token == "" {
		loggingnetwork.AuthFailed(ctx, h.pub, socketID, "missing token or uid")
		writeAuthFailure(rawConn)
		rawConn.Close()
		return
	}

	principal, err := h.dispatcher.HandleConnect(ctx, socketID, token, claimedUserID)
	if err != nil {
		writeAuthFailure(rawConn)
		rawConn.Close()
		return
	}

	c := &connection{
		socketID: socketID,
		conn:     rawConn,
		outbound: make(chan outboundEnvelope, writeQueueSize),
		done:     make(chan struct{}),
	}
	h.connMu.Lock()
	h.conns[socketID] = c
	h.connMu.Unlock()

	go c.writeLoop()
	h.readLoop(ctx, c, principal.UserID)

	h.connMu.Lock()
	delete(h.conns, socketID)
	h.connMu.Unlock()
	c.closeNow()
	h.dispatcher.HandleDisconnect(ctx, socketID)
}

func (h *Handler) readLoop(ctx context.Context, c *connection, userID uuid.UUID) {
	c.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		return nil
	})

	for {
		var env inboundEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				loggingnetwork.IdleTimeout(ctx, h.pub, userID.String(), c.socketID)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		h.dispatcher.HandleMessage(ctx, c.socketID, userID, env.Event, env.Payload)
	}
}

func (h *Handler) acquireAddrSlot(addr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.perAddr[addr] >= h.maxPerAddr {
		return false
	}
	h.perAddr[addr]++
	return true
}

func (h *Handler) releaseAddrSlot(addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.perAddr[addr]--
	if h.perAddr[addr] <= 0 {
		delete(h.perAddr, addr)
	}
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func writeAuthFailure(conn *websocket.Conn) {
	_ = conn.WriteJSON(outboundEnvelope{
		Event: dispatch.OutError,
		Payload: dispatch.ErrorPayload{
			Code:    dispatch.CodeAuthError,
			Message: "authentication failed",
		},
	})
}
