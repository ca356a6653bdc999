package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client represents a connected WebSocket client.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Subs map[string]bool
}

// Message is the WebSocket wire envelope.
type Message struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"` // request, response, event
	Method    string `json:"method"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, 256),
		Subs: make(map[string]bool),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	s.logger.Info("WebSocket client connected", zap.String("id", client.ID))

	go s.readPump(client)
	go s.writePump(client)
}

// readPump handles incoming WebSocket messages.
func (s *Server) readPump(client *Client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.ID)
		s.mu.Unlock()
		client.Conn.Close()
		s.logger.Info("WebSocket client disconnected", zap.String("id", client.ID))
	}()

	client.Conn.SetReadLimit(64 * 1024)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			s.logger.Warn("invalid WebSocket message", zap.Error(err))
			continue
		}

		s.handleMessage(client, &msg)
	}
}

// writePump handles outgoing WebSocket messages and keepalive pings.
func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage serves WebSocket requests: status queries and channel
// subscriptions.
func (s *Server) handleMessage(client *Client, msg *Message) {
	response := &Message{
		ID:        msg.ID,
		Type:      "response",
		Method:    msg.Method,
		Timestamp: time.Now().UnixMilli(),
	}

	switch msg.Method {
	case "status":
		response.Payload = s.engine.GetStatus()
	case "portfolio":
		response.Payload = s.engine.Ledger().Summarize()
	case "subscribe":
		if channel, ok := msg.Payload.(string); ok {
			client.Subs[channel] = true
			response.Payload = map[string]any{"subscribed": channel}
		} else {
			response.Error = "subscribe payload must be a channel name"
		}
	case "unsubscribe":
		if channel, ok := msg.Payload.(string); ok {
			delete(client.Subs, channel)
			response.Payload = map[string]any{"unsubscribed": channel}
		} else {
			response.Error = "unsubscribe payload must be a channel name"
		}
	default:
		response.Error = "unknown method: " + msg.Method
	}

	s.send(client, response)
}

// broadcast sends a message to every connected client.
func (s *Server) broadcast(msg *Message) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.Send <- msgBytes:
		default:
			// Client buffer full, skip
		}
	}
}

func (s *Server) send(client *Client, msg *Message) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.Send <- msgBytes:
	default:
	}
}
