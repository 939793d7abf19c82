package countdown

import "errors"

var (
	// ErrNotAccepting is returned by Join once every seat has been filled.
	ErrNotAccepting = errors.New("game is not accepting players")
	// ErrUnknownPlayer is returned when a player is not seated in the session.
	ErrUnknownPlayer = errors.New("player is not seated in this session")
	// ErrInvalidConfig is returned by NewSession for an unusable player count or
	// start total.
	ErrInvalidConfig = errors.New("invalid session config")
)
