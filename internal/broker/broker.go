// Package broker implements the live notification registry: at most one
// websocket connection per online identity, push-only after an initial auth
// handshake. Nothing here is persisted; the registry starts empty on every
// process start and delivery is strictly best-effort.
package broker

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ArmandoKoffi/voice-share-platform/internal/app"
	"github.com/ArmandoKoffi/voice-share-platform/internal/identity"
)

// Counter is the optional metrics hook (satisfied by *metrics.Manager).
type Counter interface {
	Inc(name string, delta int64)
}

// Counter names recorded by the broker.
const (
	CounterPushDelivered = "push_delivered_total"
	CounterPushDropped   = "push_dropped_total"
)

// authFrame is the required first client message on the push channel.
type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// pushMessage is the wire envelope for server pushes.
type pushMessage struct {
	Type string    `json:"type"`
	Note app.Event `json:"note"`
}

// client wraps a websocket connection with the single-writer discipline
// gorilla requires and an idempotent close.
type client struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *client) writeJSON(v any, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(v)
}

func (c *client) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// Broker maps an online identity to its single live connection. It implements
// app.Publisher and http.Handler (the websocket mount point).
type Broker struct {
	verifier identity.Verifier
	logger   *slog.Logger
	metrics  Counter // optional

	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	upgrader         websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*client
}

var _ app.Publisher = (*Broker)(nil)
var _ http.Handler = (*Broker)(nil)

// New constructs a Broker verifying handshake credentials with v.
func New(v identity.Verifier, logger *slog.Logger, metrics Counter) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		verifier:         v,
		logger:           logger.With("domain", "broker"),
		metrics:          metrics,
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The handshake carries the credential; the Origin header proves
			// nothing here and browsers on other hosts are legitimate clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and runs the connection lifecycle: auth
// handshake, registration, then a read loop whose only purpose is detecting
// close. A connection that fails the handshake is closed without registration.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(b.handshakeTimeout))
	var frame authFrame
	if err := conn.ReadJSON(&frame); err != nil || frame.Type != "auth" {
		_ = conn.Close()
		return
	}
	ident, err := b.verifier.Verify(frame.Token)
	if err != nil {
		b.logger.Debug("handshake rejected", "action", "auth")
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	c := &client{conn: conn}
	b.register(ident, c)
	b.logger.Debug("registered", "identity", ident)
	for {
		// Clients have nothing to say after auth; frames are discarded.
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	b.unregister(ident, c)
	c.close()
	b.logger.Debug("unregistered", "identity", ident)
}

// register installs c as the identity's live connection, closing any
// superseded one so the newest connection is always authoritative.
func (b *Broker) register(identity string, c *client) {
	b.mu.Lock()
	old := b.conns[identity]
	b.conns[identity] = c
	b.mu.Unlock()
	if old != nil && old != c {
		old.close()
	}
}

// unregister removes the mapping only if it still points at c, so a close
// racing a reconnect never deletes the newer registration.
func (b *Broker) unregister(identity string, c *client) {
	b.mu.Lock()
	if b.conns[identity] == c {
		delete(b.conns, identity)
	}
	b.mu.Unlock()
}

// Publish sends ev to the identity's live connection, if any. It never
// queues, never retries, and never reports failure to the caller; a write
// error tears the connection down.
func (b *Broker) Publish(identity string, ev app.Event) {
	b.mu.Lock()
	c := b.conns[identity]
	b.mu.Unlock()
	if c == nil {
		b.count(CounterPushDropped)
		return
	}
	msg := pushMessage{Type: "newNote", Note: ev}
	if err := c.writeJSON(msg, time.Now().Add(b.writeTimeout)); err != nil {
		b.logger.Debug("push failed", "identity", identity)
		c.close()
		b.unregister(identity, c)
		b.count(CounterPushDropped)
		return
	}
	b.count(CounterPushDelivered)
}

// Online reports whether a connection is currently registered for identity.
func (b *Broker) Online(identity string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[identity] != nil
}

// Shutdown closes every live connection. Intended for server teardown.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	conns := make([]*client, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.conns = make(map[string]*client)
	b.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

func (b *Broker) count(name string) {
	if b.metrics != nil {
		b.metrics.Inc(name, 1)
	}
}
