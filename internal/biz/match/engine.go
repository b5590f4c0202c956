package match

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/pkg/codes"
)

const tracerName = "github.com/yola1107/pokerdice/internal/biz/match"

// Engine runs matches: rounds, turns, scoring and the events they produce.
// Every operation runs in one transaction and broadcasts only after commit.
type Engine struct {
	c        *conf.LiveGame
	tx       Transactor
	accounts AccountRepo
	rnd      Randomizer
	bc       Broadcaster
	log      *log.Helper
	tracer   trace.Tracer
	audit    *matchLogs

	// one resolution per match at a time
	resolving singleflight.Group
}

func NewEngine(c *conf.LiveGame, tx Transactor, accounts AccountRepo, rnd Randomizer, bc Broadcaster, logger log.Logger) (*Engine, func()) {
	e := &Engine{
		c:        c,
		tx:       tx,
		accounts: accounts,
		rnd:      rnd,
		bc:       bc,
		log:      log.NewHelper(log.With(logger, "module", "biz/match")),
		tracer:   otel.Tracer(tracerName),
		audit:    newMatchLogs(c),
	}
	return e, e.audit.closeAll
}

func (e *Engine) startSpan(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "match."+name, trace.WithAttributes(kv...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, errors.Reason(err))
	}
	span.End()
}

// typed keeps error kinds the engine already named and hides everything else
// behind codes.ErrInternal.
func typed(err error) error {
	if err == nil {
		return nil
	}
	var se *errors.Error
	if errors.As(err, &se) {
		return err
	}
	return codes.Internal(err)
}

// CreateMatch stores a new match for the deduplicated roster and tells the
// lobby the game has started.
func (e *Engine) CreateMatch(ctx context.Context, lobbyID string, roster []string, totalRounds int) (m *Match, err error) {
	ctx, span := e.startSpan(ctx, "CreateMatch", attribute.String("lobby.id", lobbyID))
	defer func() { endSpan(span, err) }()

	if !validID(lobbyID) {
		return nil, codes.ErrInvalidLobbyID
	}
	if totalRounds < 1 {
		return nil, codes.ErrInvalidRoundCount
	}
	if !lo.EveryBy(roster, validID) {
		return nil, codes.ErrInvalidUserID
	}

	m = &Match{
		ID:          uuid.NewString(),
		LobbyID:     lobbyID,
		TotalRounds: totalRounds,
		Players:     lo.Uniq(roster),
		Status:      StatusActive,
		CreatedAt:   time.Now(),
	}
	err = e.tx.InTx(ctx, func(ctx context.Context, repo Repo) error {
		return repo.CreateMatch(ctx, m)
	})
	if err != nil {
		return nil, typed(err)
	}

	e.log.Infof("match created. id=%s lobby=%s players=%v rounds=%d", m.ID, lobbyID, m.Players, totalRounds)
	e.audit.matchCreated(m)
	e.broadcastGameStarted(ctx, m)
	return m, nil
}

// GetScores returns the standings, best first.
func (e *Engine) GetScores(ctx context.Context, matchID string) (out []Standing, err error) {
	ctx, span := e.startSpan(ctx, "GetScores", attribute.String("match.id", matchID))
	defer func() { endSpan(span, err) }()

	err = e.tx.InTx(ctx, func(ctx context.Context, repo Repo) error {
		s := &scope{repo: repo, matchID: matchID}
		if err := check(ctx, s, validMatchID, matchExists); err != nil {
			return err
		}
		var err error
		out, err = scoreboard(ctx, repo, s.match)
		return err
	})
	return out, typed(err)
}

// GetGameWinner returns the leader once the latest round has every turn
// finished.
func (e *Engine) GetGameWinner(ctx context.Context, matchID string) (w *Standing, err error) {
	ctx, span := e.startSpan(ctx, "GetGameWinner", attribute.String("match.id", matchID))
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
			return codes.ErrNoRoundInProgress
		}
		finished, err := repo.CountFinishedTurns(ctx, matchID, r.Number)
		if err != nil {
			return err
		}
		if finished < len(s.match.Players) {
			return codes.ErrGameNotFinished
		}
		st, err := scoreboard(ctx, repo, s.match)
		if err != nil {
			return err
		}
		if len(st) == 0 {
			return codes.ErrNoPlayersInGame
		}
		w = &st[0]
		return nil
	})
	return w, typed(err)
}

// CheckMember reports whether userID may follow the game room of matchID.
func (e *Engine) CheckMember(ctx context.Context, userID, matchID string) error {
	err := e.tx.InTx(ctx, func(ctx context.Context, repo Repo) error {
		s := &scope{repo: repo, userID: userID, matchID: matchID}
		return check(ctx, s, validUserID, validMatchID, matchExists, isMember)
	})
	return typed(err)
}

func (e *Engine) GetStats(ctx context.Context, userID string) (*Stats, error) {
	if !validID(userID) {
		return nil, codes.ErrInvalidUserID
	}
	st, err := e.accounts.GetStats(ctx, userID)
	return st, typed(err)
}

func scoreboard(ctx context.Context, repo Repo, m *Match) ([]Standing, error) {
	turns, err := repo.ListFinishedTurns(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	rounds, err := repo.ListRounds(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return standings(m.Players, turns, rounds), nil
}
