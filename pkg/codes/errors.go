package codes

import (
	"net/http"

	"github.com/go-kratos/kratos/v2/errors"
)

// identifier errors
var (
	ErrInvalidUserID     = errors.New(http.StatusBadRequest, "INVALID_USER_ID", "user id is not a valid id")
	ErrInvalidMatchID    = errors.New(http.StatusBadRequest, "INVALID_MATCH_ID", "match id is not a valid id")
	ErrInvalidLobbyID    = errors.New(http.StatusBadRequest, "INVALID_LOBBY_ID", "lobby id is not a valid id")
	ErrInvalidRoundCount = errors.New(http.StatusBadRequest, "INVALID_ROUND_COUNT", "round count must be at least 1")
	ErrMatchNotFound     = errors.New(http.StatusNotFound, "MATCH_NOT_FOUND", "match not found")
)

// membership errors
var (
	ErrUserNotInGame      = errors.New(http.StatusForbidden, "USER_NOT_IN_GAME", "user is not a player of this match")
	ErrNotPlayerTurn      = errors.New(http.StatusForbidden, "NOT_PLAYER_TURN", "it is not this player's turn")
	ErrUnauthorizedAction = errors.New(http.StatusForbidden, "UNAUTHORIZED_ACTION", "no player may act in this round")
)

// state errors
var (
	ErrRoundNotStarted       = errors.New(http.StatusConflict, "ROUND_NOT_STARTED", "no round has been started")
	ErrNoRoundInProgress     = errors.New(http.StatusConflict, "NO_ROUND_IN_PROGRESS", "no round is in progress")
	ErrAllPlayersNotFinished = errors.New(http.StatusConflict, "ALL_PLAYERS_NOT_FINISHED", "not every player has finished the round")
	ErrTooManyRolls          = errors.New(http.StatusConflict, "TOO_MANY_ROLLS", "turn already used every roll")
	ErrEmptyHand             = errors.New(http.StatusConflict, "EMPTY_HAND", "hand must hold five dice")
	ErrTurnAlreadyFinished   = errors.New(http.StatusConflict, "TURN_ALREADY_FINISHED", "turn is already finished")
	ErrRollConflict          = errors.New(http.StatusConflict, "ROLL_CONFLICT", "turn changed during roll")
	ErrGameNotFinished       = errors.New(http.StatusConflict, "GAME_NOT_FINISHED", "current round is not finished")
	ErrGameAlreadyFinished   = errors.New(http.StatusConflict, "GAME_ALREADY_FINISHED", "match is already finished")
)

// transport errors
var (
	ErrBadRequest     = errors.New(http.StatusBadRequest, "BAD_REQUEST", "malformed request")
	ErrUnknownCommand = errors.New(http.StatusNotFound, "UNKNOWN_COMMAND", "unknown command")
	ErrRateLimited    = errors.New(http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
)

// resource errors
var (
	ErrNoPlayersInGame = errors.New(http.StatusUnprocessableEntity, "NO_PLAYERS_IN_GAME", "match has no players")
	ErrInternal        = errors.New(http.StatusInternalServerError, "INTERNAL", "internal error")
)

// Internal wraps an unexpected failure so the cause survives for logs.
func Internal(err error) *errors.Error {
	return ErrInternal.WithCause(err)
}
