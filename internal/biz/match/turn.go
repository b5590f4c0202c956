package match

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/pkg/codes"
)

// Roll rerolls the caller's dice. Indices in locked keep their face; they are
// ignored on the first roll of a turn and when out of range.
func (e *Engine) Roll(ctx context.Context, userID, matchID string, locked []int) (res *RollResult, err error) {
	ctx, span := e.startSpan(ctx, "Roll",
		attribute.String("match.id", matchID),
		attribute.String("user.id", userID),
		attribute.IntSlice("dice.locked", locked),
	)
	defer func() { endSpan(span, err) }()

	err = e.tx.InTx(ctx, func(ctx context.Context, repo Repo) error {
		s := &scope{repo: repo, userID: userID, matchID: matchID}
		if err := check(ctx, s,
			validUserID, validMatchID, matchExists, isMember, matchActive,
			roundInProgress, callerTurn, turnOpen,
		); err != nil {
			return err
		}
		if s.turn.RollCount >= MaxRolls {
			return codes.ErrTooManyRolls
		}

		hand := e.rollHand(s.turn.Hand, locked)
		ok, err := repo.IncrementRoll(ctx, matchID, s.round.Number, userID, s.turn.RollCount, hand)
		if err != nil {
			return err
		}
		if !ok {
			return rollConflict(ctx, s)
		}
		res = &RollResult{Round: s.round.Number, PlayerID: userID, Hand: hand, RollCount: s.turn.RollCount + 1}
		return nil
	})
	if err != nil {
		return nil, typed(err)
	}

	e.log.Debugf("rolled. match=%s round=%d player=%s hand=%v rolls=%d", matchID, res.Round, userID, res.Hand, res.RollCount)
	e.audit.rolled(matchID, res, locked)
	e.broadcastPlayerRolled(ctx, matchID, res)
	return res, nil
}

func (e *Engine) rollHand(prev model.Hand, locked []int) model.Hand {
	keep := prev.Complete()
	hand := make(model.Hand, model.HandSize)
	for i := range hand {
		if keep && lo.Contains(locked, i) {
			hand[i] = prev[i]
			continue
		}
		hand[i] = e.rnd.Face()
	}
	return hand
}

// rollConflict names why the roll write lost against a concurrent change.
func rollConflict(ctx context.Context, s *scope) error {
	t, err := s.repo.GetTurn(ctx, s.matchID, s.round.Number, s.userID)
	if err != nil {
		return err
	}
	switch {
	case t.Finished:
		return codes.ErrTurnAlreadyFinished
	case t.RollCount >= MaxRolls:
		return codes.ErrTooManyRolls
	default:
		return codes.ErrRollConflict
	}
}

// FinishTurn scores the caller's hand and hands the turn to the next player.
// The finish that completes the round also resolves it; a failed resolution
// is logged and left for the next StartRound.
func (e *Engine) FinishTurn(ctx context.Context, userID, matchID string) (res *FinishResult, err error) {
	ctx, span := e.startSpan(ctx, "FinishTurn",
		attribute.String("match.id", matchID),
		attribute.String("user.id", userID),
	)
	defer func() { endSpan(span, err) }()

	var complete bool
	err = e.tx.InTx(ctx, func(ctx context.Context, repo Repo) error {
		s := &scope{repo: repo, userID: userID, matchID: matchID}
		if err := check(ctx, s,
			validUserID, validMatchID, matchExists, isMember, matchActive,
			roundInProgress, callerTurn, turnOpen, handComplete, turnBelongsToCaller,
		); err != nil {
			return err
		}

		rank := model.Evaluate(s.turn.Hand)
		ok, err := repo.FinishTurn(ctx, matchID, s.round.Number, userID, rank.Points())
		if err != nil {
			return err
		}
		if !ok {
			return codes.ErrTurnAlreadyFinished
		}
		finished, err := repo.CountFinishedTurns(ctx, matchID, s.round.Number)
		if err != nil {
			return err
		}
		complete = finished >= len(s.round.Order)
		res = &FinishResult{
			Round:    s.round.Number,
			PlayerID: userID,
			Hand:     s.turn.Hand,
			Rank:     rank,
			Points:   rank.Points(),
		}
		return nil
	})
	if err != nil {
		return nil, typed(err)
	}

	e.log.Infof("turn finished. match=%s round=%d player=%s rank=%s", matchID, res.Round, userID, res.Rank)
	e.audit.finished(matchID, res)
	e.broadcastPlayerFinished(ctx, matchID, res)
	if !complete {
		return res, nil
	}

	rr, rerr := e.ResolveRoundWinner(ctx, matchID)
	switch {
	case rerr == nil:
		res.Resolved = rr
	case errors.Is(rerr, codes.ErrNoRoundInProgress):
		// resolved by a concurrent caller
	default:
		e.log.Errorf("resolve round failed. match=%s round=%d err=%v", matchID, res.Round, rerr)
	}
	return res, nil
}
