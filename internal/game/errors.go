package game

import "errors"

// Sentinel errors returned by StateStore operations. Callers match these
// with errors.Is.
var (
	ErrFull          = errors.New("room full")
	ErrDuplicate     = errors.New("player id already present")
	ErrNotFound      = errors.New("player not found")
	ErrNotAlive      = errors.New("player not alive")
	ErrBadAction     = errors.New("malformed action")
	ErrTooFewPlayers = errors.New("too few players to start match")
)
