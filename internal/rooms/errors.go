package rooms

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidChoice   = errors.New("invalid choice")
	ErrPlayerNotInRoom = errors.New("player not in room")
	ErrWrongPhase      = errors.New("operation not allowed in current phase")
	ErrNoActions       = errors.New("no actions proposed")
	ErrNoVotes         = errors.New("no votes cast")
	ErrNoRollPending   = errors.New("no roll pending")
	ErrCodeExhausted   = errors.New("failed to generate unique code")
	ErrNarrator        = errors.New("narrator failed")
)
