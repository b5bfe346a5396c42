package room

import "errors"

// Rejected-action errors. Each maps 1:1 to a wire error code; none of
// them leaves session state modified.
var (
	ErrRoomNotFound       = errors.New("room_not_found")
	ErrGameNotStarted     = errors.New("game_not_started")
	ErrGameStarted        = errors.New("game_already_started")
	ErrGameEnded          = errors.New("game_ended")
	ErrNotYourTurn        = errors.New("not_your_turn")
	ErrAlreadyMarked      = errors.New("number_already_marked")
	ErrInvalidNumber      = errors.New("invalid_number")
	ErrNotHost            = errors.New("not_host")
	ErrNotReady           = errors.New("players_not_ready")
	ErrUnknownParticipant = errors.New("unknown_participant")
	ErrInvalidDimensions  = errors.New("invalid_dimensions")
	ErrInvalidUsername    = errors.New("invalid_username")
)
