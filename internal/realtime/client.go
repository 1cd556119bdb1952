package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// LocationFunc receives location pings pushed by technician clients.
type LocationFunc func(userID int64, lat, lng, accuracyM float64)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
	info ClientInfo

	onLocation LocationFunc

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, info ClientInfo, onLocation LocationFunc) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan Message, 256),
		info:       info,
		onLocation: onLocation,
		done:       make(chan struct{}),
	}
}

// ReadPump reads frames from the peer until the connection drops.
// One ReadPump per connection, always paired with a WritePump.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Int64("user_id", c.info.UserID).Msg("websocket read error")
			}
			return
		}

		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Int64("user_id", c.info.UserID).Msg("malformed websocket message")
		return
	}

	switch msg.Type {
	case "ping":
		// browsers cannot send protocol pings, so answer the
		// application-level one instead
		select {
		case c.send <- Message{Type: "pong", Timestamp: time.Now().UTC()}:
		default:
		}
	case "pong":
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	case "location":
		if c.info.ClientType != ClientTypeTechnician {
			return
		}
		var ping struct {
			Lat       float64 `json:"lat"`
			Lng       float64 `json:"lng"`
			AccuracyM float64 `json:"accuracy_m"`
		}
		if err := json.Unmarshal(msg.Data, &ping); err != nil {
			log.Warn().Err(err).Int64("user_id", c.info.UserID).Msg("malformed location ping")
			return
		}
		if ping.Lat < -90 || ping.Lat > 90 || ping.Lng < -180 || ping.Lng > 180 {
			log.Warn().
				Int64("user_id", c.info.UserID).
				Float64("lat", ping.Lat).
				Float64("lng", ping.Lng).
				Msg("location ping out of range")
			return
		}
		if c.onLocation != nil {
			c.onLocation(c.info.UserID, ping.Lat, ping.Lng, ping.AccuracyM)
		}
	default:
		log.Debug().Str("type", msg.Type).Int64("user_id", c.info.UserID).Msg("unhandled websocket message")
	}
}

// WritePump drains the send channel to the peer and keeps the
// connection alive with protocol pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Warn().Err(err).Int64("user_id", c.info.UserID).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "connection replaced"))
			return
		}
	}
}
