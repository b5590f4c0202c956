package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/encoding"
	"github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/google/uuid"

	"github.com/yola1107/pokerdice/internal/notify"
	"github.com/yola1107/pokerdice/pkg/codes"
)

// websocket commands on game connections
const (
	CmdStartRound = "start_round"
	CmdRoll       = "roll"
	CmdFinishTurn = "finish_turn"
	CmdScores     = "scores"
	CmdWinner     = "winner"
)

type command func(s *MatchService, ctx context.Context, userID, matchID string, body []byte) (any, error)

var commands = map[string]command{
	CmdStartRound: func(s *MatchService, ctx context.Context, _, matchID string, _ []byte) (any, error) {
		return s.StartRound(ctx, matchID)
	},
	CmdRoll: func(s *MatchService, ctx context.Context, userID, matchID string, body []byte) (any, error) {
		var req RollRequest
		if len(body) > 0 {
			if err := encoding.GetCodec(json.Name).Unmarshal(body, &req); err != nil {
				return nil, codes.ErrBadRequest.WithCause(err)
			}
		}
		return s.Roll(ctx, userID, matchID, &req)
	},
	CmdFinishTurn: func(s *MatchService, ctx context.Context, userID, matchID string, _ []byte) (any, error) {
		return s.FinishTurn(ctx, userID, matchID)
	},
	CmdScores: func(s *MatchService, ctx context.Context, _, matchID string, _ []byte) (any, error) {
		return s.GetScores(ctx, matchID)
	},
	CmdWinner: func(s *MatchService, ctx context.Context, _, matchID string, _ []byte) (any, error) {
		return s.GetWinner(ctx, matchID)
	},
}

// Authorize admits a websocket connection: game rooms only take match
// members, lobby rooms any well formed id.
func (s *MatchService) Authorize(ctx context.Context, kind notify.Kind, userID, roomID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return codes.ErrInvalidUserID
	}
	switch kind {
	case notify.KindGame:
		return s.engine.CheckMember(ctx, userID, roomID)
	case notify.KindLobby:
		if _, err := uuid.Parse(roomID); err != nil {
			return codes.ErrInvalidLobbyID
		}
		return nil
	default:
		return codes.ErrBadRequest
	}
}

// Dispatch runs one websocket command. The game room id is the match id.
func (s *MatchService) Dispatch(ctx context.Context, kind notify.Kind, userID, roomID, cmd string, body []byte) (any, error) {
	fn, ok := commands[cmd]
	if !ok || kind != notify.KindGame {
		return nil, codes.ErrUnknownCommand
	}
	return fn(s, ctx, userID, roomID, body)
}
