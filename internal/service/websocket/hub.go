// Package websocket fans detection events out to the sockets of the user
// who owns the image.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visionchat/internal/logger"
)

const writeWait = 5 * time.Second

type subscription struct {
	conn   *websocket.Conn
	userID int64
}

type message struct {
	userID int64
	data   []byte
}

// HubService owns every registered connection. All writes happen on the Run
// goroutine.
type HubService struct {
	clients    map[*websocket.Conn]int64
	publish    chan message
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]int64),
		publish:    make(chan message, 64),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then closes every connection.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			h.logger.Info("Websocket hub stopped")
			return

		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.conn] = sub.userID
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected for user %d. Total: %d", sub.userID, total)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case msg := <-h.publish:
			h.mutex.Lock()
			for conn, userID := range h.clients {
				if userID != msg.userID {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register subscribes conn to events of userID.
func (h *HubService) Register(conn *websocket.Conn, userID int64) {
	select {
	case h.register <- subscription{conn: conn, userID: userID}:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues data for every connection of userID. It drops the event
// when the queue is full instead of stalling the request.
func (h *HubService) Publish(userID int64, data []byte) {
	select {
	case h.publish <- message{userID: userID, data: data}:
	case <-h.done:
	default:
		h.logger.Warning("Websocket queue full, dropping event for user %d", userID)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
