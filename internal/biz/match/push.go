package match

import (
	"context"

	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/internal/notify"
)

const (
	EventGameStarted        = "GAME_STARTED"
	EventRoundStarted       = "ROUND_STARTED"
	EventPlayerRolled       = "PLAYER_ROLLED"
	EventPlayerFinishedTurn = "PLAYER_FINISHED_TURN"
	EventRoundEnded         = "ROUND_ENDED"
	EventGameEnded          = "GAME_ENDED"
)

type GameStartedPayload struct {
	MatchID     string   `json:"matchId"`
	LobbyID     string   `json:"lobbyId"`
	Players     []string `json:"players"`
	TotalRounds int      `json:"totalRounds"`
}

type RoundStartedPayload struct {
	RoundNumber int        `json:"roundNumber"`
	Order       []string   `json:"order"`
	Players     []Standing `json:"players"`
}

type PlayerRolledPayload struct {
	PlayerID    string     `json:"playerId"`
	RoundNumber int        `json:"roundNumber"`
	NewHand     model.Hand `json:"newHand"`
	RollCount   int        `json:"rollCount"`
}

type PlayerFinishedTurnPayload struct {
	PlayerID string `json:"playerId"`
	Points   int    `json:"points"`
	HandRank string `json:"handRank"`
}

type RoundWinner struct {
	ID       string `json:"id"`
	Points   int    `json:"points"`
	HandRank string `json:"handRank"`
}

type RoundEndedPayload struct {
	RoundNumber int         `json:"roundNumber"`
	Winner      RoundWinner `json:"winner"`
	TotalRounds int         `json:"totalRounds"`
}

type GameWinner struct {
	ID          string `json:"id"`
	TotalPoints int    `json:"totalPoints"`
	RoundsWon   int    `json:"roundsWon"`
}

type GameEndedPayload struct {
	Winner     GameWinner `json:"winner"`
	FinalRound int        `json:"finalRound"`
}

func (e *Engine) pushToGame(ctx context.Context, matchID, typ string, payload any) {
	e.bc.Broadcast(ctx, notify.KindGame, matchID, notify.NewEvent(typ, payload))
}

func (e *Engine) broadcastGameStarted(ctx context.Context, m *Match) {
	e.bc.Broadcast(ctx, notify.KindLobby, m.LobbyID, notify.NewEvent(EventGameStarted, &GameStartedPayload{
		MatchID:     m.ID,
		LobbyID:     m.LobbyID,
		Players:     m.Players,
		TotalRounds: m.TotalRounds,
	}))
	e.bc.CloseRoomLater(notify.KindLobby, m.LobbyID)
}

func (e *Engine) broadcastRoundStarted(ctx context.Context, matchID string, res *StartResult) {
	e.pushToGame(ctx, matchID, EventRoundStarted, &RoundStartedPayload{
		RoundNumber: res.Round,
		Order:       res.Order,
		Players:     res.Scoreboard,
	})
}

func (e *Engine) broadcastPlayerRolled(ctx context.Context, matchID string, res *RollResult) {
	e.pushToGame(ctx, matchID, EventPlayerRolled, &PlayerRolledPayload{
		PlayerID:    res.PlayerID,
		RoundNumber: res.Round,
		NewHand:     res.Hand,
		RollCount:   res.RollCount,
	})
}

func (e *Engine) broadcastPlayerFinished(ctx context.Context, matchID string, res *FinishResult) {
	e.pushToGame(ctx, matchID, EventPlayerFinishedTurn, &PlayerFinishedTurnPayload{
		PlayerID: res.PlayerID,
		Points:   res.Points,
		HandRank: res.Rank.String(),
	})
}

func (e *Engine) broadcastRoundEnded(ctx context.Context, matchID string, res *RoundResult) {
	e.pushToGame(ctx, matchID, EventRoundEnded, &RoundEndedPayload{
		RoundNumber: res.Round,
		Winner: RoundWinner{
			ID:       res.WinnerID,
			Points:   res.Points,
			HandRank: res.Rank.String(),
		},
		TotalRounds: res.TotalRounds,
	})
}

// broadcastGameEnded also schedules the game room for closing.
func (e *Engine) broadcastGameEnded(ctx context.Context, matchID string, res *GameResult) {
	e.pushToGame(ctx, matchID, EventGameEnded, &GameEndedPayload{
		Winner: GameWinner{
			ID:          res.Winner.PlayerID,
			TotalPoints: res.Winner.Points,
			RoundsWon:   res.Winner.RoundsWon,
		},
		FinalRound: res.FinalRound,
	})
	e.bc.CloseRoomLater(notify.KindGame, matchID)
}
