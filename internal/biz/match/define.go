package match

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/yola1107/pokerdice/internal/model"
)

// MaxRolls is the number of rolls a turn allows.
const MaxRolls = 3

type Status int8

const (
	StatusActive   Status = 1
	StatusFinished Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Match is one game spanning TotalRounds rounds for a fixed roster.
type Match struct {
	ID          string
	LobbyID     string
	TotalRounds int
	Players     []string
	Status      Status
	WinnerID    string
	CreatedAt   time.Time
}

func (m *Match) HasPlayer(userID string) bool {
	return lo.Contains(m.Players, userID)
}

func (m *Match) Finished() bool {
	return m.Status == StatusFinished
}

// Round is one scored sub-game. Order is the turn order for the round.
type Round struct {
	MatchID  string
	Number   int
	WinnerID string
	Order    []string
}

func (r *Round) Resolved() bool {
	return r.WinnerID != ""
}

// Turn is one player's dice in one round. Score is nil until the turn finishes.
type Turn struct {
	MatchID   string
	Round     int
	PlayerID  string
	Hand      model.Hand
	RollCount int
	Score     *int
	Finished  bool
}

func (t *Turn) Points() int {
	if t.Score == nil {
		return 0
	}
	return *t.Score
}

// Standing is one scoreboard line.
type Standing struct {
	PlayerID  string `json:"id"`
	Points    int    `json:"points"`
	RoundsWon int    `json:"roundsWon"`
}

// StartResult is returned by StartRound.
type StartResult struct {
	Round      int
	Order      []string
	Scoreboard []Standing
}

type RollResult struct {
	Round     int
	PlayerID  string
	Hand      model.Hand
	RollCount int
}

func (r *RollResult) RollsLeft() int {
	return MaxRolls - r.RollCount
}

// FinishResult carries the round outcome when this finish completed the round.
type FinishResult struct {
	Round    int
	PlayerID string
	Hand     model.Hand
	Rank     model.HandRank
	Points   int
	Resolved *RoundResult
}

type RoundResult struct {
	Round       int
	TotalRounds int
	WinnerID    string
	Hand        model.Hand
	Rank        model.HandRank
	Points      int
	Reward      int64
	Game        *GameResult
}

// Stats is a player's lifetime record kept by the account store.
type Stats struct {
	UserID     string `json:"id"`
	Coins      int64  `json:"coins"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Streak     int    `json:"streak"`
	BestStreak int    `json:"bestStreak"`
}

type GameResult struct {
	Winner     Standing
	FinalRound int
	Standings  []Standing
}

// standings totals finished turns per player. Ties fall back to rounds won and
// then to roster order.
func standings(players []string, turns []*Turn, rounds []*Round) []Standing {
	byPlayer := make(map[string]*Standing, len(players))
	out := make([]Standing, len(players))
	for i, id := range players {
		out[i] = Standing{PlayerID: id}
		byPlayer[id] = &out[i]
	}
	for _, t := range turns {
		if s, ok := byPlayer[t.PlayerID]; ok && t.Finished {
			s.Points += t.Points()
		}
	}
	for _, r := range rounds {
		if s, ok := byPlayer[r.WinnerID]; ok {
			s.RoundsWon++
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].RoundsWon > out[j].RoundsWon
	})
	return out
}

// bestTurn picks the round winner: highest score, then highest face weight,
// then earliest in the round order.
func bestTurn(order []string, turns []*Turn) *Turn {
	byPlayer := lo.KeyBy(turns, func(t *Turn) string { return t.PlayerID })
	var best *Turn
	for _, id := range order {
		t, ok := byPlayer[id]
		if !ok {
			continue
		}
		if best == nil || model.Beats(t.Hand, best.Hand) {
			best = t
		}
	}
	return best
}
