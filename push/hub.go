package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
)

type WSMessageType string

const (
	WSMessageTypeAlert        WSMessageType = "alert"
	WSMessageTypeNotification WSMessageType = "notification"
)

type WSMessage struct {
	Type         WSMessageType `json:"type"`
	Alert        *Alert        `json:"alert,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// SendSocketFunc returns true if data was successfully sent
type SendSocketFunc func([]byte) bool

type ConnectedClient struct {
	fun SendSocketFunc
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const defaultWriteWait = 10 * time.Second

// Hub fans out alerts to every connected websocket client
type Hub struct {
	clients   cmap.ConcurrentMap[string, *ConnectedClient]
	WriteWait time.Duration // a client not accepting a message within that time is dropped
}

func NewHub() *Hub {
	return &Hub{clients: cmap.New[*ConnectedClient](), WriteWait: defaultWriteWait}
}

func (h *Hub) Count() int {
	return h.clients.Count()
}

func (h *Hub) send(message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		slog.Error("websocket marshal", "error", err)
		return
	}
	wg := sync.WaitGroup{}
	for item := range h.clients.IterBuffered() {
		wg.Add(1)
		go func(id string, client *ConnectedClient) {
			defer wg.Done()
			if !client.fun(data) {
				h.clients.Remove(id)
			}
		}(item.Key, item.Val)
	}
	wg.Wait()
}

func (h *Hub) Broadcast(alert Alert) {
	h.send(WSMessage{Type: WSMessageTypeAlert, Alert: &alert})
}

func (h *Hub) BroadcastNotification(notification Notification) {
	h.send(WSMessage{Type: WSMessageTypeNotification, Notification: &notification})
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// Setup client
	isConnected := true
	writeMutex := sync.Mutex{}
	write := func(mt int, data []byte) bool {
		writeMutex.Lock()
		defer writeMutex.Unlock()
		if !isConnected {
			return false
		}
		_ = conn.SetWriteDeadline(time.Now().Add(h.WriteWait))
		if err := conn.WriteMessage(mt, data); err != nil {
			slog.Debug("websocket write", "error", err)
			isConnected = false
			conn.Close() // unblocks the read cycle
			return false
		}
		return true
	}
	id := uuid.NewString()
	h.clients.Set(id, &ConnectedClient{fun: func(data []byte) bool {
		return write(websocket.TextMessage, data)
	}})
	defer h.clients.Remove(id)

	// Main read cycle
	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			writeMutex.Lock()
			isConnected = false
			writeMutex.Unlock()
			break
		}
		if string(message) == "ping" {
			write(mt, []byte("pong"))
		}
	}
}
