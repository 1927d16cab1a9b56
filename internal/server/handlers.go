package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"questvote/internal/config"
	"questvote/internal/db"
	"questvote/internal/metrics"
	"questvote/internal/rooms"
	"questvote/internal/wshub"
)

type Server struct {
	Config   config.Config
	Rooms    *rooms.Store
	Hub      *wshub.Hub
	DB       *db.DB       // nil if no database configured
	Archive  *db.Archiver // nil if no database configured
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger
}

type createRequest struct {
	Context string `json:"context"`
	Prompt  string `json:"prompt"`
}

type joinRequest struct {
	Name string `json:"name" binding:"required"`
}

type actionRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

type voteRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Choice   *int   `json:"choice" binding:"required"`
}

type rollRequest struct {
	Value *int `json:"value" binding:"omitempty,min=1"`
}

var statusOK = gin.H{"status": "ok"}

// roomCode normalizes the code path parameter; codes are upper case.
func roomCode(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("code")))
}

// errorStatus maps domain errors to an HTTP status and client-facing detail.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		return http.StatusNotFound, "Invalid room code"
	case errors.Is(err, rooms.ErrInvalidChoice):
		return http.StatusBadRequest, "Invalid choice"
	case errors.Is(err, rooms.ErrPlayerNotInRoom):
		return http.StatusForbidden, "Player not in room"
	case errors.Is(err, rooms.ErrWrongPhase):
		return http.StatusConflict, "Not allowed in the current phase"
	case errors.Is(err, rooms.ErrNoActions):
		return http.StatusConflict, "No actions proposed yet"
	case errors.Is(err, rooms.ErrNoVotes):
		return http.StatusConflict, "Voting is not complete"
	case errors.Is(err, rooms.ErrNoRollPending):
		return http.StatusConflict, "No roll pending"
	case errors.Is(err, rooms.ErrNarrator):
		return http.StatusBadGateway, "Narrator unavailable"
	}
	return http.StatusInternalServerError, "Internal error"
}

func (s *Server) fail(c *gin.Context, err error) {
	status, detail := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.Log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Invalid request", "error": err.Error()})
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	room, err := s.Rooms.CreateSeeded(rooms.Seed{Context: req.Context, Prompt: req.Prompt})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.Log.Info().Str("room", room.Code).Msg("created room")
	c.JSON(http.StatusOK, gin.H{"code": room.Code})
}

// handleRoom serves the real-time channel when the request asks for a
// websocket upgrade and a state snapshot otherwise.
func (s *Server) handleRoom(c *gin.Context) {
	code := roomCode(c)
	if isUpgrade(c.Request) {
		s.handleRoomSocket(c, code)
		return
	}
	room, err := s.Rooms.Get(code)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room.Snapshot())
}

func (s *Server) handleDeleteRoom(c *gin.Context) {
	code := roomCode(c)
	if !s.Rooms.Delete(code) {
		s.fail(c, rooms.ErrRoomNotFound)
		return
	}
	s.Log.Info().Str("room", code).Msg("deleted room")
	c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleJoinRoom(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := s.Rooms.Join(roomCode(c), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := s.Rooms.ProposeAction(roomCode(c), req.PlayerID, req.Text); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := s.Rooms.SubmitVote(roomCode(c), req.PlayerID, *req.Choice); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleNextRound(c *gin.Context) {
	res, err := s.Rooms.Resolve(c.Request.Context(), roomCode(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleRoll(c *gin.Context) {
	var req rollRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	res, err := s.Rooms.Roll(c.Request.Context(), roomCode(c), req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.DB == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "History requires a database connection"})
		return
	}
	rounds, err := s.DB.RoomRounds(c.Request.Context(), roomCode(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, statusOK)
}
