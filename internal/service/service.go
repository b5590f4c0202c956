package service

import (
	"context"

	"github.com/google/wire"

	"github.com/yola1107/pokerdice/internal/biz/match"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewMatchService, wire.Bind(new(Engine), new(*match.Engine)))

// Engine is the match use case behind both transports.
type Engine interface {
	CreateMatch(ctx context.Context, lobbyID string, roster []string, totalRounds int) (*match.Match, error)
	StartRound(ctx context.Context, matchID string) (*match.StartResult, error)
	Roll(ctx context.Context, userID, matchID string, locked []int) (*match.RollResult, error)
	FinishTurn(ctx context.Context, userID, matchID string) (*match.FinishResult, error)
	GetScores(ctx context.Context, matchID string) ([]match.Standing, error)
	GetGameWinner(ctx context.Context, matchID string) (*match.Standing, error)
	GetStats(ctx context.Context, userID string) (*match.Stats, error)
	CheckMember(ctx context.Context, userID, matchID string) error
}
