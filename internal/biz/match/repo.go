package match

import (
	"context"

	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/internal/notify"
)

// Repo stores matches, rounds and turns. Every method runs inside the
// transaction it was handed by Transactor.InTx.
type Repo interface {
	CreateMatch(ctx context.Context, m *Match) error
	// GetMatch returns codes.ErrMatchNotFound for an unknown id.
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	// FinishMatch marks an ACTIVE match FINISHED; false when it already was.
	FinishMatch(ctx context.Context, matchID, winnerID string) (bool, error)

	// LatestRound returns nil when no round has been started.
	LatestRound(ctx context.Context, matchID string) (*Round, error)
	ListRounds(ctx context.Context, matchID string) ([]*Round, error)
	// CreateRound stores the round and an empty turn for every player in its order.
	CreateRound(ctx context.Context, r *Round) error
	// SetRoundWinner stores the winner unless the round already has one.
	SetRoundWinner(ctx context.Context, matchID string, round int, winnerID string) (bool, error)

	GetTurn(ctx context.Context, matchID string, round int, playerID string) (*Turn, error)
	ListTurns(ctx context.Context, matchID string, round int) ([]*Turn, error)
	ListFinishedTurns(ctx context.Context, matchID string) ([]*Turn, error)
	CountFinishedTurns(ctx context.Context, matchID string, round int) (int, error)
	// IncrementRoll stores hand and bumps the roll count by one, only while the
	// turn is unfinished and its roll count still equals fromCount.
	IncrementRoll(ctx context.Context, matchID string, round int, playerID string, fromCount int, hand model.Hand) (bool, error)
	// FinishTurn stores the score and marks the turn finished unless it already is.
	FinishTurn(ctx context.Context, matchID string, round int, playerID string, score int) (bool, error)
}

// Transactor runs fn inside one transaction: commit when fn returns nil,
// roll back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repo) error) error
}

// AccountRepo is the account collaborator that owns coins and statistics.
type AccountRepo interface {
	CreditReward(ctx context.Context, userID string, amount int64) error
	// RecordResult counts a win or a loss; a loss resets the win streak.
	RecordResult(ctx context.Context, userID string, won bool) error
	GetStats(ctx context.Context, userID string) (*Stats, error)
}

// Randomizer supplies dice faces and turn orders.
type Randomizer interface {
	Face() model.Face
	Permute(ids []string) []string
}

// Broadcaster relays events to connected subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind notify.Kind, roomID string, ev *notify.Event)
	CloseRoomLater(kind notify.Kind, roomID string)
}
