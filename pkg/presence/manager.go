package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// catchupLimit bounds how many missed delivery events one catchup response
// returns before telling the client to fall back to a REST reload.
const catchupLimit = 200

// listenTimeout bounds how long a LISTEN may block when a connection
// subscribes to a new channel, so a stalled Postgres connection cannot
// block the client's read loop indefinitely.
const listenTimeout = 10 * time.Second

// CatchupEvent is one missed delivery_events row replayed to a reconnecting
// client (spec §4.1: "client reconnects and must catch up without gaps").
type CatchupEvent struct {
	ID      int64
	Payload map[string]any
}

// CatchupQuerier feeds catchup queries for a channel. Implemented by the
// message store's event feed.
type CatchupQuerier interface {
	CatchupEvents(ctx context.Context, channel string, sinceID int64, limit int) ([]CatchupEvent, error)
}

// ClientMessage is an inbound WebSocket control message.
type ClientMessage struct {
	Action      string `json:"action"` // subscribe, unsubscribe, catchup, ping
	Channel     string `json:"channel"`
	LastEventID *int64 `json:"last_event_id,omitempty"`
}

// ConnectionManager tracks every live WebSocket connection on this process
// and its channel subscriptions, and fans NOTIFY payloads out to them.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	catchupQuerier CatchupQuerier

	listener   *NotifyListener
	listenerMu sync.RWMutex

	writeTimeout time.Duration
}

// Connection is a single WebSocket client. subscriptions is read/written
// only from the connection's own read-loop goroutine, so it needs no lock.
type Connection struct {
	ID            string
	UserID        string
	Conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionManager builds a manager serving catchup from q.
func NewConnectionManager(q CatchupQuerier, writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:    make(map[string]*Connection),
		channels:       make(map[string]map[string]bool),
		catchupQuerier: q,
		writeTimeout:   writeTimeout,
	}
}

// SetListener wires the NotifyListener used for dynamic LISTEN/UNLISTEN.
// Called once at startup after both are constructed.
func (m *ConnectionManager) SetListener(l *NotifyListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listener = l
}

// HandleConnection drives one WebSocket connection's lifecycle until it
// closes. Call after the HTTP handler has completed the upgrade.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, userID string, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		UserID:        userID,
		Conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": connID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid websocket message", "connection_id", connID, "error", err)
			continue
		}
		m.handleClientMessage(ctx, c, &msg)
	}
}

// Broadcast delivers a raw NOTIFY payload to every connection subscribed to
// channel on this process.
func (m *ConnectionManager) Broadcast(channel string, event []byte) {
	m.channelMu.RLock()
	connIDs, exists := m.channels[channel]
	if !exists {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := m.sendRaw(conn, event); err != nil {
			slog.Warn("failed to send to websocket client", "connection_id", conn.ID, "error", err)
		}
	}
}

// ActiveConnections reports how many clients are connected to this process.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) subscriberCount(channel string) int {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	return len(m.channels[channel])
}

func (m *ConnectionManager) handleClientMessage(ctx context.Context, c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		if err := m.subscribe(c, msg.Channel); err != nil {
			m.sendJSON(c, map[string]string{"type": "subscription.error", "channel": msg.Channel, "message": "failed to subscribe"})
			return
		}
		m.sendJSON(c, map[string]string{"type": "subscription.confirmed", "channel": msg.Channel})
		m.handleCatchup(ctx, c, msg.Channel, 0)

	case "unsubscribe":
		if msg.Channel != "" {
			m.unsubscribe(c, msg.Channel)
		}

	case "catchup":
		if msg.Channel != "" && msg.LastEventID != nil {
			m.handleCatchup(ctx, c, msg.Channel, *msg.LastEventID)
		}

	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// subscribe registers c for channel and LISTENs on first subscriber.
// Synchronous so the subsequent auto-catchup always runs with LISTEN
// already active, closing the gap where events published between catchup
// and LISTEN would be lost.
func (m *ConnectionManager) subscribe(c *Connection, channel string) error {
	m.channelMu.Lock()
	needsListen := false
	if _, exists := m.channels[channel]; !exists {
		m.channels[channel] = make(map[string]bool)
		needsListen = true
	}
	m.channels[channel][c.ID] = true
	m.channelMu.Unlock()

	if needsListen {
		m.listenerMu.RLock()
		l := m.listener
		m.listenerMu.RUnlock()
		if l != nil {
			listenCtx, cancel := context.WithTimeout(context.Background(), listenTimeout)
			defer cancel()
			if err := l.Subscribe(listenCtx, channel); err != nil {
				slog.Error("failed to LISTEN on channel", "channel", channel, "error", err)
				m.cleanupFailedChannel(c, channel)
				return fmt.Errorf("LISTEN on channel %s: %w", channel, err)
			}
		}
	}

	c.subscriptions[channel] = true
	return nil
}

// cleanupFailedChannel evicts every subscriber of channel after a failed
// LISTEN, since any concurrent subscriber that saw the channel already
// registered would have skipped LISTEN and believed it succeeded.
func (m *ConnectionManager) cleanupFailedChannel(triggering *Connection, channel string) {
	m.channelMu.Lock()
	affected := make([]string, 0, len(m.channels[channel]))
	for connID := range m.channels[channel] {
		if connID != triggering.ID {
			affected = append(affected, connID)
		}
	}
	delete(m.channels, channel)
	m.channelMu.Unlock()

	if len(affected) == 0 {
		return
	}

	m.mu.RLock()
	conns := make([]*Connection, 0, len(affected))
	for _, id := range affected {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		m.sendJSON(conn, map[string]string{"type": "subscription.error", "channel": channel, "message": "channel listen failed; subscription removed"})
	}
}

func (m *ConnectionManager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs, exists := m.channels[channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
			m.listenerMu.RLock()
			l := m.listener
			m.listenerMu.RUnlock()
			if l != nil {
				go func() {
					m.channelMu.RLock()
					_, resubscribed := m.channels[channel]
					m.channelMu.RUnlock()
					if resubscribed {
						return
					}
					if err := l.Unsubscribe(context.Background(), channel); err != nil {
						slog.Error("failed to UNLISTEN channel", "channel", channel, "error", err)
					}
				}()
			}
		}
	}
	m.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

func (m *ConnectionManager) handleCatchup(ctx context.Context, c *Connection, channel string, lastEventID int64) {
	if m.catchupQuerier == nil {
		return
	}

	events, err := m.catchupQuerier.CatchupEvents(ctx, channel, lastEventID, catchupLimit+1)
	if err != nil {
		slog.Error("catchup query failed", "channel", channel, "error", err)
		return
	}

	hasMore := len(events) > catchupLimit
	if hasMore {
		events = events[:catchupLimit]
	}

	for _, evt := range events {
		evt.Payload["db_event_id"] = evt.ID
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			continue
		}
		if err := m.sendRaw(c, payload); err != nil {
			slog.Warn("failed to send catchup event", "connection_id", c.ID, "error", err)
			return
		}
	}

	if hasMore {
		m.sendJSON(c, map[string]any{"type": "catchup.overflow", "channel": channel, "has_more": true})
	}
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *ConnectionManager) unregisterConnection(c *Connection) {
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal websocket message", "connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("failed to send websocket message", "connection_id", c.ID, "error", err)
	}
}

func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
