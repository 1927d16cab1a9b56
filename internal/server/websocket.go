package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"questvote/internal/events"
	"questvote/internal/rooms"
	"questvote/internal/wshub"
)

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 10 * time.Second
)

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// handleRoomSocket registers the connection with the hub and relays every
// inbound text frame to the whole room. The connection is unregistered as
// soon as reading, writing or pinging fails. A player_id query parameter, when
// present, must name a member of the room.
func (s *Server) handleRoomSocket(c *gin.Context, code string) {
	room, err := s.Rooms.Get(code)
	if err != nil {
		s.fail(c, err)
		return
	}
	playerID := c.Query("player_id")
	if playerID != "" && !room.HasPlayer(playerID) {
		s.fail(c, rooms.ErrPlayerNotInRoom)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("room", code).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	client := wshub.NewClient(code, playerID, conn, s.Config.SendBuffer)
	if err := s.attach(code, client); err != nil {
		conn.Close(websocket.StatusGoingAway, "room closed")
		return
	}
	defer s.Hub.Unregister(code, client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := s.Log.With().Str("room", code).Str("client", client.ID).Str("player", client.PlayerID).Logger()
	log.Debug().Msg("connection registered")

	go func() {
		defer cancel()
		if err := client.WritePump(ctx, s.Config.WriteTimeout); err != nil && !wshub.IsClosed(err) {
			log.Debug().Err(err).Msg("write failed")
		}
	}()
	go func() {
		defer cancel()
		if err := client.Keepalive(ctx, pingInterval, pingTimeout); err != nil && !wshub.IsClosed(err) {
			log.Debug().Err(err).Msg("ping failed")
		}
	}()

	s.readLoop(ctx, client)
	log.Debug().Msg("connection closed")
}

// attach registers client, then confirms the room still exists. Delete and
// Sweep remove the room before closing its group, so a room that is gone
// here has already been closed and the client is dropped instead.
func (s *Server) attach(code string, client *wshub.Client) error {
	s.Hub.Register(code, client)
	if _, err := s.Rooms.Get(code); err != nil {
		s.Hub.Unregister(code, client)
		return err
	}
	return nil
}

func (s *Server) readLoop(ctx context.Context, client *wshub.Client) {
	limiter := rate.NewLimiter(rate.Limit(s.Config.ChatRate), s.Config.ChatBurst)
	for {
		typ, data, err := client.Conn.Read(ctx)
		if err != nil {
			if !wshub.IsClosed(err) {
				s.Log.Debug().Err(err).Str("room", client.RoomCode).Msg("read failed")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if !limiter.Allow() {
			s.Metrics.ChatThrottled()
			continue
		}
		if err := s.Rooms.Touch(client.RoomCode); errors.Is(err, rooms.ErrRoomNotFound) {
			return
		}
		s.Hub.Broadcast(client.RoomCode, events.ChatEvent{Message: string(data)})
	}
}
