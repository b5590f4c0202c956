package match

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/google/uuid"

	"github.com/yola1107/pokerdice/pkg/codes"
)

// scope is what the guards of one operation have loaded so far.
type scope struct {
	repo    Repo
	userID  string
	matchID string

	match *Match
	round *Round
	turn  *Turn
}

type guard func(ctx context.Context, s *scope) error

// check runs guards left to right and stops at the first failure.
func check(ctx context.Context, s *scope, guards ...guard) error {
	for _, g := range guards {
		if err := g(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validUserID(_ context.Context, s *scope) error {
	if !validID(s.userID) {
		return codes.ErrInvalidUserID
	}
	return nil
}

func validMatchID(_ context.Context, s *scope) error {
	if !validID(s.matchID) {
		return codes.ErrInvalidMatchID
	}
	return nil
}

func matchExists(ctx context.Context, s *scope) error {
	m, err := s.repo.GetMatch(ctx, s.matchID)
	if errors.Is(err, codes.ErrMatchNotFound) {
		return err
	}
	if err != nil {
		return codes.Internal(err)
	}
	s.match = m
	return nil
}

func isMember(_ context.Context, s *scope) error {
	if !s.match.HasPlayer(s.userID) {
		return codes.ErrUserNotInGame
	}
	return nil
}

func matchActive(_ context.Context, s *scope) error {
	if s.match.Finished() {
		return codes.ErrGameAlreadyFinished
	}
	return nil
}

func hasPlayers(_ context.Context, s *scope) error {
	if len(s.match.Players) == 0 {
		return codes.ErrNoPlayersInGame
	}
	return nil
}

// roundInProgress loads the latest round and requires it to be unresolved.
func roundInProgress(ctx context.Context, s *scope) error {
	r, err := s.repo.LatestRound(ctx, s.matchID)
	if err != nil {
		return codes.Internal(err)
	}
	if r == nil {
		return codes.ErrRoundNotStarted
	}
	if r.Resolved() {
		return codes.ErrNoRoundInProgress
	}
	s.round = r
	return nil
}

func callerTurn(ctx context.Context, s *scope) error {
	t, err := s.repo.GetTurn(ctx, s.matchID, s.round.Number, s.userID)
	if err != nil {
		return codes.Internal(err)
	}
	s.turn = t
	return nil
}

func turnOpen(_ context.Context, s *scope) error {
	if s.turn.Finished {
		return codes.ErrTurnAlreadyFinished
	}
	return nil
}

func handComplete(_ context.Context, s *scope) error {
	if !s.turn.Hand.Complete() {
		return codes.ErrEmptyHand
	}
	return nil
}

// turnBelongsToCaller derives the turn pointer from the number of finished
// turns and requires it to point at the caller.
func turnBelongsToCaller(ctx context.Context, s *scope) error {
	finished, err := s.repo.CountFinishedTurns(ctx, s.matchID, s.round.Number)
	if err != nil {
		return codes.Internal(err)
	}
	if finished < 0 || finished >= len(s.round.Order) {
		return codes.ErrUnauthorizedAction
	}
	if s.round.Order[finished] != s.userID {
		return codes.ErrNotPlayerTurn
	}
	return nil
}
