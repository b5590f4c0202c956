package match

import (
	"context"
	"net/http"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/pkg/codes"
)

// errRoundUnresolved rolls back a StartRound that found the previous round
// complete but without a winner.
var errRoundUnresolved = errors.New(http.StatusInternalServerError, "ROUND_UNRESOLVED", "previous round awaits resolution")

// StartRound opens the next round with a fresh random turn order. A previous
// round that is complete but unresolved is resolved first.
func (e *Engine) StartRound(ctx context.Context, matchID string) (res *StartResult, err error) {
	ctx, span := e.startSpan(ctx, "StartRound", attribute.String("match.id", matchID))
	defer func() { endSpan(span, err) }()

	res, err = e.startRound(ctx, matchID)
	if !errors.Is(err, errRoundUnresolved) {
		return res, typed(err)
	}

	rr, err := e.ResolveRoundWinner(ctx, matchID)
	if err != nil && !errors.Is(err, codes.ErrNoRoundInProgress) {
		return nil, err
	}
	if rr != nil && rr.Game != nil {
		return nil, codes.ErrGameAlreadyFinished
	}
	res, err = e.startRound(ctx, matchID)
	if errors.Is(err, errRoundUnresolved) {
		return nil, codes.ErrAllPlayersNotFinished
	}
	return res, typed(err)
}

func (e *Engine) startRound(ctx context.Context, matchID string) (res *StartResult, err error) {
	err = e.tx.InTx(ctx, func(ctx context.Context, repo Repo) error {
		s := &scope{repo: repo, matchID: matchID}
		if err := check(ctx, s, validMatchID, matchExists, matchActive, hasPlayers); err != nil {
			return err
		}
		prev, err := repo.LatestRound(ctx, matchID)
		if err != nil {
			return err
		}
		number := 1
		if prev != nil {
			finished, err := repo.CountFinishedTurns(ctx, matchID, prev.Number)
			if err != nil {
				return err
			}
			if finished < len(prev.Order) {
				return codes.ErrAllPlayersNotFinished
			}
			if !prev.Resolved() {
				return errRoundUnresolved
			}
			number = prev.Number + 1
		}
		if number > s.match.TotalRounds {
			return codes.ErrGameAlreadyFinished
		}

		r := &Round{MatchID: matchID, Number: number, Order: e.rnd.Permute(s.match.Players)}
		if err := repo.CreateRound(ctx, r); err != nil {
			return err
		}
		board, err := scoreboard(ctx, repo, s.match)
		if err != nil {
			return err
		}
		res = &StartResult{Round: number, Order: r.Order, Scoreboard: board}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Infof("round started. match=%s round=%d order=%v", matchID, res.Round, res.Order)
	e.audit.roundStarted(matchID, res)
	e.broadcastRoundStarted(ctx, matchID, res)
	return res, nil
}

// ResolveRoundWinner records the winner of the current round once every turn
// is finished, credits the reward and ends the match after its last round.
// Concurrent calls for one match share a single resolution.
func (e *Engine) ResolveRoundWinner(ctx context.Context, matchID string) (*RoundResult, error) {
	// shared by every caller of the flight, so no single caller's deadline applies
	shared := context.WithoutCancel(ctx)
	v, err, _ := e.resolving.Do(matchID, func() (any, error) {
		return e.resolveRound(shared, matchID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RoundResult), nil
}

func (e *Engine) resolveRound(ctx context.Context, matchID string) (res *RoundResult, err error) {
	ctx, span := e.startSpan(ctx, "ResolveRoundWinner", attribute.String("match.id", matchID))
	defer func() { endSpan(span, err) }()

	err = e.tx.InTx(ctx, func(ctx context.Context, repo Repo) error {
		s := &scope{repo: repo, matchID: matchID}
		if err := check(ctx, s, validMatchID, matchExists); err != nil {
			return err
		}
		r, err := repo.LatestRound(ctx, matchID)
		if err != nil {
			return err
		}
		if r == nil {
			return codes.ErrRoundNotStarted
		}
		if r.Resolved() {
			return codes.ErrNoRoundInProgress
		}
		turns, err := repo.ListTurns(ctx, matchID, r.Number)
		if err != nil {
			return err
		}
		finished := lo.Filter(turns, func(t *Turn, _ int) bool { return t.Finished })
		if len(finished) < len(r.Order) {
			return codes.ErrAllPlayersNotFinished
		}

		best := bestTurn(r.Order, finished)
		if best == nil {
			return codes.ErrNoPlayersInGame
		}
		ok, err := repo.SetRoundWinner(ctx, matchID, r.Number, best.PlayerID)
		if err != nil {
			return err
		}
		if !ok {
			return codes.ErrNoRoundInProgress
		}
		res = &RoundResult{
			Round:       r.Number,
			TotalRounds: s.match.TotalRounds,
			WinnerID:    best.PlayerID,
			Hand:        best.Hand,
			Rank:        model.Evaluate(best.Hand),
			Points:      best.Points(),
			Reward:      e.c.Load().RoundReward,
		}
		if r.Number >= s.match.TotalRounds {
			if res.Game, err = endGame(ctx, repo, s.match, r.Number); err != nil {
				return err
			}
		}

		// account writes go last so a failure here rolls the round back
		if res.Reward > 0 {
			if err := e.accounts.CreditReward(ctx, res.WinnerID, res.Reward); err != nil {
				return err
			}
		}
		if res.Game != nil {
			for _, id := range s.match.Players {
				if err := e.accounts.RecordResult(ctx, id, id == res.Game.Winner.PlayerID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, typed(err)
	}

	e.log.Infof("round resolved. match=%s round=%d/%d winner=%s rank=%s", matchID, res.Round, res.TotalRounds, res.WinnerID, res.Rank)
	e.audit.roundEnded(matchID, res)
	e.broadcastRoundEnded(ctx, matchID, res)
	if res.Game != nil {
		e.log.Infof("match finished. match=%s winner=%s points=%d", matchID, res.Game.Winner.PlayerID, res.Game.Winner.Points)
		e.audit.gameEnded(matchID, res.Game)
		e.broadcastGameEnded(ctx, matchID, res.Game)
	}
	return res, nil
}

// endGame closes the match inside the resolving transaction.
func endGame(ctx context.Context, repo Repo, m *Match, finalRound int) (*GameResult, error) {
	board, err := scoreboard(ctx, repo, m)
	if err != nil {
		return nil, err
	}
	if len(board) == 0 {
		return nil, codes.ErrNoPlayersInGame
	}
	ok, err := repo.FinishMatch(ctx, m.ID, board[0].PlayerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, codes.ErrGameAlreadyFinished
	}
	return &GameResult{Winner: board[0], FinalRound: finalRound, Standings: board}, nil
}
