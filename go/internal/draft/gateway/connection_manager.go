package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections for draft events
type ConnectionManager struct {
	// Connection pools organized by draft ID
	draftConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan events.Envelope
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	TeamID  string
	DraftID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

// ConnectionStats summarizes open connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveDrafts     int            `json:"active_drafts"`
	DraftConnections map[string]int `json:"draft_connections"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		BroadcastBuffer: 1000,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		draftConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan events.Envelope, config.BroadcastBuffer),
	}
}

// Start processes broadcasts until ctx is done, then closes every connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case evt := <-cm.broadcastCh:
			cm.handleBroadcast(evt)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, teamID string, draftID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		TeamID:      teamID,
		DraftID:     draftID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("team_id", teamID).
		Str("draft_id", draftID.String()).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.draftConnections[conn.DraftID] == nil {
		cm.draftConnections[conn.DraftID] = make(map[*Connection]bool)
	}
	cm.draftConnections[conn.DraftID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("draft_id", conn.DraftID.String()).
		Int("total_connections", len(cm.draftConnections[conn.DraftID])).
		Msg("connection registered")
}

// unregisterConnection is safe to call more than once per connection.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.draftConnections[conn.DraftID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.draftConnections, conn.DraftID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("team_id", conn.TeamID).
		Str("draft_id", conn.DraftID.String()).
		Msg("connection unregistered")
}

// Broadcast queues evt for every connection watching its draft.
func (cm *ConnectionManager) Broadcast(evt events.Envelope) {
	select {
	case cm.broadcastCh <- evt:
	default:
		log.Warn().
			Str("draft_id", evt.DraftID.String()).
			Str("event_type", evt.EventType).
			Msg("broadcast channel full, dropping message")
	}
}

// Publish implements events.Sink so the manager can sit beside the other
// sinks of an in-process orchestrator.
func (cm *ConnectionManager) Publish(_ context.Context, evt events.Envelope) error {
	cm.Broadcast(evt)
	return nil
}

func (cm *ConnectionManager) handleBroadcast(evt events.Envelope) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Send channels are closed under the write lock, so sending under the
	// read lock never hits a closed channel.
	var slow []*Connection
	cm.mu.RLock()
	connections := cm.draftConnections[evt.DraftID]
	for conn := range connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	delivered := len(connections) - len(slow)
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("team_id", conn.TeamID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", evt.EventType).
		Str("draft_id", evt.DraftID.String()).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// Stats returns statistics about active connections
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveDrafts:     len(cm.draftConnections),
		DraftConnections: make(map[string]int, len(cm.draftConnections)),
	}
	for draftID, connections := range cm.draftConnections {
		stats.TotalConnections += len(connections)
		stats.DraftConnections[draftID.String()] = len(connections)
	}
	return stats
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.draftConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump drains the client side so pongs and close frames are processed.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		// Picks go through the RPC surface; client frames are only logged.
		log.Debug().
			Str("connection_id", c.ID).
			Str("team_id", c.TeamID).
			Int("bytes", len(message)).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
