package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"workday/config"
	"workday/internal/auth"
	"workday/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second
	maxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// joinMessage is the client handshake. UserID, CompanyID and IsAdmin are
// accepted for compatibility but never used: identity comes from the token.
type joinMessage struct {
	Type      string `json:"type"`
	Token     string `json:"token"`
	UserID    uint   `json:"userId"`
	CompanyID uint   `json:"companyId"`
	IsAdmin   bool   `json:"isAdmin"`
}

// ServePresenceWS upgrades the connection for presence events. The socket
// joins its rooms once a valid session token arrives, either as ?token= or
// in a join message. Invalid tokens are ignored without a reply.
func ServePresenceWS(cfg *config.JWTConfig, b *Broadcaster, sendBuffer int) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := NewClient(uuid.NewString(), sendBuffer)
		ctx := context.WithoutCancel(c.Request.Context())
		defer func() {
			joined := client.Joined()
			client.Close()
			if joined {
				b.presence(ctx, client, false)
			}
		}()

		go writePump(client, conn)

		if token := c.Query("token"); token != "" {
			join(ctx, cfg, b, client, token)
		}
		readPump(conn, func(msg []byte) {
			var m joinMessage
			if json.Unmarshal(msg, &m) != nil || m.Type != "join" || client.Joined() {
				return
			}
			join(ctx, cfg, b, client, m.Token)
		})
	}
}

func join(ctx context.Context, cfg *config.JWTConfig, b *Broadcaster, client *Client, token string) {
	claims, err := auth.ParseAccessToken(cfg, token)
	if err != nil {
		return
	}
	client.UserID = claims.UserID
	client.CompanyID = claims.CompanyID
	client.IsAdmin = claims.Role == domain.RoleAdmin
	rooms := b.hub.Join(client)
	if rooms == nil {
		return
	}
	b.sendTo(client, "joined", joinAck{
		UserID:    client.UserID,
		CompanyID: client.CompanyID,
		IsAdmin:   client.IsAdmin,
		Rooms:     rooms,
	})
	b.presence(ctx, client, true)
}

type joinAck struct {
	UserID    uint     `json:"userId"`
	CompanyID uint     `json:"companyId"`
	IsAdmin   bool     `json:"isAdmin"`
	Rooms     []string `json:"rooms"`
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(conn *websocket.Conn, onMessage func([]byte)) {
	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		onMessage(msg)
	}
}
