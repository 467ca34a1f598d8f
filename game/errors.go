package game

import "errors"

// Lobby/join errors, surfaced to the joining connection.
var (
	ErrRoomNotFound  = errors.New("room-not-found")
	ErrRoomFull      = errors.New("room-full")
	ErrAlreadyInGame = errors.New("already-in-game")
	ErrGameEnded     = errors.New("game-ended")
)

// Action refusals. These never crash a room and are never sent back to the
// acting client; they only feed logging.
var (
	ErrInvalidAction   = errors.New("invalid-action")
	ErrOutOfRange      = errors.New("out-of-range")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrAlreadyResolved = errors.New("already-resolved")
	ErrCooldownActive  = errors.New("cooldown-active")
	ErrImmune          = errors.New("immune")
)
