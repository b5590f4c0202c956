package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/internal/model"
)

type CreateMatchRequest struct {
	LobbyID     string   `json:"lobbyId"`
	Players     []string `json:"players"`
	TotalRounds int      `json:"totalRounds"`
}

type MatchReply struct {
	ID          string   `json:"id"`
	LobbyID     string   `json:"lobbyId"`
	Players     []string `json:"players"`
	TotalRounds int      `json:"totalRounds"`
	Status      string   `json:"status"`
}

type StartRoundReply struct {
	RoundNumber int              `json:"roundNumber"`
	Order       []string         `json:"order"`
	Players     []match.Standing `json:"players"`
}

type RollRequest struct {
	LockedIndices []int `json:"lockedIndices"`
}

type RollReply struct {
	RoundNumber int        `json:"roundNumber"`
	Hand        model.Hand `json:"hand"`
	RollCount   int        `json:"rollCount"`
	RollsLeft   int        `json:"rollsLeft"`
}

type FinishTurnReply struct {
	RoundNumber int                `json:"roundNumber"`
	Hand        model.Hand         `json:"hand"`
	Points      int                `json:"points"`
	HandRank    string             `json:"handRank"`
	RoundWinner *match.RoundWinner `json:"roundWinner,omitempty"`
	GameWinner  *match.GameWinner  `json:"gameWinner,omitempty"`
}

type ScoresReply struct {
	Players []match.Standing `json:"players"`
}

// MatchService adapts the engine to request and reply shapes shared by the
// HTTP routes and websocket commands.
type MatchService struct {
	engine Engine
	log    *log.Helper
}

func NewMatchService(engine Engine, logger log.Logger) *MatchService {
	return &MatchService{
		engine: engine,
		log:    log.NewHelper(log.With(logger, "module", "service/match")),
	}
}

func (s *MatchService) CreateMatch(ctx context.Context, req *CreateMatchRequest) (*MatchReply, error) {
	m, err := s.engine.CreateMatch(ctx, req.LobbyID, req.Players, req.TotalRounds)
	if err != nil {
		return nil, err
	}
	return &MatchReply{
		ID:          m.ID,
		LobbyID:     m.LobbyID,
		Players:     m.Players,
		TotalRounds: m.TotalRounds,
		Status:      m.Status.String(),
	}, nil
}

func (s *MatchService) StartRound(ctx context.Context, matchID string) (*StartRoundReply, error) {
	res, err := s.engine.StartRound(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return &StartRoundReply{RoundNumber: res.Round, Order: res.Order, Players: res.Scoreboard}, nil
}

func (s *MatchService) Roll(ctx context.Context, userID, matchID string, req *RollRequest) (*RollReply, error) {
	res, err := s.engine.Roll(ctx, userID, matchID, req.LockedIndices)
	if err != nil {
		return nil, err
	}
	return &RollReply{
		RoundNumber: res.Round,
		Hand:        res.Hand,
		RollCount:   res.RollCount,
		RollsLeft:   res.RollsLeft(),
	}, nil
}

func (s *MatchService) FinishTurn(ctx context.Context, userID, matchID string) (*FinishTurnReply, error) {
	res, err := s.engine.FinishTurn(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}
	reply := &FinishTurnReply{
		RoundNumber: res.Round,
		Hand:        res.Hand,
		Points:      res.Points,
		HandRank:    res.Rank.String(),
	}
	if rr := res.Resolved; rr != nil {
		reply.RoundWinner = &match.RoundWinner{ID: rr.WinnerID, Points: rr.Points, HandRank: rr.Rank.String()}
		if g := rr.Game; g != nil {
			reply.GameWinner = &match.GameWinner{ID: g.Winner.PlayerID, TotalPoints: g.Winner.Points, RoundsWon: g.Winner.RoundsWon}
		}
	}
	return reply, nil
}

func (s *MatchService) GetScores(ctx context.Context, matchID string) (*ScoresReply, error) {
	st, err := s.engine.GetScores(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return &ScoresReply{Players: st}, nil
}

func (s *MatchService) GetWinner(ctx context.Context, matchID string) (*match.GameWinner, error) {
	w, err := s.engine.GetGameWinner(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return &match.GameWinner{ID: w.PlayerID, TotalPoints: w.Points, RoundsWon: w.RoundsWon}, nil
}

func (s *MatchService) GetStats(ctx context.Context, userID string) (*match.Stats, error) {
	return s.engine.GetStats(ctx, userID)
}
