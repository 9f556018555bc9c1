// Package gateway is the websocket transport adapter: it upgrades client
// connections, decodes inbound commands into coordinator calls, and delivers
// outbound room events. Connection pools are keyed by room id; each
// connection writes through its own buffered send channel.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/crickdraft/server/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Coordinator is what the gateway needs from the session layer.
type Coordinator interface {
	Join(ctx context.Context, roomID, userID, name string) error
	StartSelection(ctx context.Context, roomID, requesterID string) error
	SelectItem(ctx context.Context, roomID, userID string, itemID int) error
	Leave(ctx context.Context, roomID, userID string) error
	Disconnect(ctx context.Context, roomID, userID string) error
	Reconnect(ctx context.Context, userID string) (string, error)
	LookupUserRoom(ctx context.Context, userID string) (string, error)
	Now() time.Time
}

// Config holds websocket connection tuning.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default websocket tuning.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

type broadcastMessage struct {
	roomID       string
	userID       string // if set, deliver only to this user
	exceptUserID string // if set, deliver to everyone but this user
	event        *session.Event
}

// ConnectionManager owns all live websocket connections and implements
// session.Broadcaster for the coordinator.
type ConnectionManager struct {
	mu        sync.RWMutex
	roomConns map[string]map[*Connection]bool

	upgrader    websocket.Upgrader
	config      Config
	coord       Coordinator
	broadcastCh chan broadcastMessage
}

// NewConnectionManager creates a manager. The coordinator is attached later
// with SetCoordinator because the two reference each other.
func NewConnectionManager(config Config) *ConnectionManager {
	return &ConnectionManager{
		roomConns: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetCoordinator attaches the session layer. Must be called before
// HandleConnection accepts traffic.
func (cm *ConnectionManager) SetCoordinator(coord Coordinator) {
	cm.coord = coord
}

// Run processes queued broadcasts until the context is cancelled.
func (cm *ConnectionManager) Run(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

// Broadcast implements session.Broadcaster.
func (cm *ConnectionManager) Broadcast(roomID string, ev *session.Event) {
	cm.enqueue(broadcastMessage{roomID: roomID, event: ev})
}

// BroadcastExcept implements session.Broadcaster.
func (cm *ConnectionManager) BroadcastExcept(roomID, exceptUserID string, ev *session.Event) {
	cm.enqueue(broadcastMessage{roomID: roomID, exceptUserID: exceptUserID, event: ev})
}

// SendToUser implements session.Broadcaster.
func (cm *ConnectionManager) SendToUser(roomID, userID string, ev *session.Event) {
	cm.enqueue(broadcastMessage{roomID: roomID, userID: userID, event: ev})
}

func (cm *ConnectionManager) enqueue(msg broadcastMessage) {
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().Str("room_id", msg.roomID).Msg("broadcast channel full, dropping event")
	}
}

func (cm *ConnectionManager) deliver(msg broadcastMessage) {
	cm.mu.RLock()
	conns := cm.roomConns[msg.roomID]
	targets := make([]*Connection, 0, len(conns))
	for conn := range conns {
		if msg.userID != "" && conn.UserID != msg.userID {
			continue
		}
		if msg.exceptUserID != "" && conn.UserID == msg.exceptUserID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(msg.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for delivery")
		return
	}
	for _, conn := range targets {
		conn.enqueue(data)
	}

	log.Debug().
		Str("event_type", string(msg.event.Type)).
		Str("room_id", msg.roomID).
		Int("connections", len(targets)).
		Msg("event delivered")
}

// HandleConnection upgrades an HTTP request to a websocket session. The
// connection stays unbound until its first successful join or reconnect.
func (cm *ConnectionManager) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := &Connection{
		ID:          uuid.New().String(),
		Conn:        ws,
		Send:        make(chan []byte, 256),
		manager:     cm,
		ConnectedAt: time.Now(),
	}
	go conn.writePump()
	go conn.readPump()

	log.Info().Str("connection_id", conn.ID).Msg("websocket connection established")
}

// bind registers a connection into a room's pool, replacing any earlier
// binding for the same connection.
func (cm *ConnectionManager) bind(conn *Connection, roomID, userID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if conn.RoomID != "" {
		cm.removeLocked(conn)
	}
	conn.RoomID = roomID
	conn.UserID = userID
	if cm.roomConns[roomID] == nil {
		cm.roomConns[roomID] = make(map[*Connection]bool)
	}
	cm.roomConns[roomID][conn] = true
}

// unbind removes the connection from its room pool without closing it.
func (cm *ConnectionManager) unbind(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeLocked(conn)
	conn.RoomID = ""
}

func (cm *ConnectionManager) removeLocked(conn *Connection) {
	if conns, ok := cm.roomConns[conn.RoomID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(cm.roomConns, conn.RoomID)
		}
	}
}

// drop unregisters and closes a connection's send channel. Safe to call more
// than once.
func (cm *ConnectionManager) drop(conn *Connection) {
	cm.mu.Lock()
	cm.removeLocked(conn)
	cm.mu.Unlock()

	conn.closeOnce.Do(func() {
		close(conn.Send)
	})
}

// Stats summarizes live connections for the admin surface.
func (cm *ConnectionManager) Stats() (totalConnections, activeRooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, conns := range cm.roomConns {
		totalConnections += len(conns)
	}
	return totalConnections, len(cm.roomConns)
}
