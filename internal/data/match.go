package data

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/pkg/codes"
)

var _ match.Repo = (*matchRepo)(nil)

// matchRepo is bound to the transaction handed out by Data.InTx.
type matchRepo struct {
	db *gorm.DB
}

func (r *matchRepo) CreateMatch(ctx context.Context, m *match.Match) error {
	return r.db.WithContext(ctx).Create(toMatchPO(m)).Error
}

func (r *matchRepo) GetMatch(ctx context.Context, matchID string) (*match.Match, error) {
	var po matchPO
	err := r.db.WithContext(ctx).Where("id = ?", matchID).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, codes.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return po.toBiz(), nil
}

func (r *matchRepo) FinishMatch(ctx context.Context, matchID, winnerID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&matchPO{}).
		Where("id = ? AND status = ?", matchID, int8(match.StatusActive)).
		Updates(map[string]any{"status": int8(match.StatusFinished), "winner_id": winnerID})
	return res.RowsAffected == 1, res.Error
}

func (r *matchRepo) LatestRound(ctx context.Context, matchID string) (*match.Round, error) {
	var pos []*roundPO
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("number DESC").
		Limit(1).
		Find(&pos).Error
	if err != nil || len(pos) == 0 {
		return nil, err
	}
	return pos[0].toBiz(), nil
}

func (r *matchRepo) ListRounds(ctx context.Context, matchID string) ([]*match.Round, error) {
	var pos []*roundPO
	err := r.db.WithContext(ctx).Where("match_id = ?", matchID).Order("number").Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po *roundPO, _ int) *match.Round { return po.toBiz() }), nil
}

func (r *matchRepo) CreateRound(ctx context.Context, rd *match.Round) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(&roundPO{MatchID: rd.MatchID, Number: rd.Number, Order: rd.Order}).Error; err != nil {
		return err
	}
	if len(rd.Order) == 0 {
		return nil
	}
	turns := lo.Map(rd.Order, func(id string, _ int) *turnPO {
		return &turnPO{MatchID: rd.MatchID, Round: rd.Number, PlayerID: id}
	})
	return db.Create(&turns).Error
}

func (r *matchRepo) SetRoundWinner(ctx context.Context, matchID string, round int, winnerID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&roundPO{}).
		Where("match_id = ? AND number = ? AND winner_id IS NULL", matchID, round).
		Update("winner_id", winnerID)
	return res.RowsAffected == 1, res.Error
}

func (r *matchRepo) GetTurn(ctx context.Context, matchID string, round int, playerID string) (*match.Turn, error) {
	var po turnPO
	err := r.db.WithContext(ctx).
		Where("match_id = ? AND round = ? AND player_id = ?", matchID, round, playerID).
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return po.toBiz(), nil
}

func (r *matchRepo) ListTurns(ctx context.Context, matchID string, round int) ([]*match.Turn, error) {
	var pos []*turnPO
	err := r.db.WithContext(ctx).Where("match_id = ? AND round = ?", matchID, round).Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po *turnPO, _ int) *match.Turn { return po.toBiz() }), nil
}

func (r *matchRepo) ListFinishedTurns(ctx context.Context, matchID string) ([]*match.Turn, error) {
	var pos []*turnPO
	err := r.db.WithContext(ctx).Where("match_id = ? AND finished = ?", matchID, true).Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po *turnPO, _ int) *match.Turn { return po.toBiz() }), nil
}

func (r *matchRepo) CountFinishedTurns(ctx context.Context, matchID string, round int) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&turnPO{}).
		Where("match_id = ? AND round = ? AND finished = ?", matchID, round, true).
		Count(&n).Error
	return int(n), err
}

func (r *matchRepo) IncrementRoll(ctx context.Context, matchID string, round int, playerID string, fromCount int, hand model.Hand) (bool, error) {
	res := r.db.WithContext(ctx).Model(&turnPO{}).
		Where("match_id = ? AND round = ? AND player_id = ? AND finished = ? AND roll_count = ?",
			matchID, round, playerID, false, fromCount).
		Select("hand", "roll_count").
		Updates(turnPO{Hand: hand, RollCount: fromCount + 1})
	return res.RowsAffected == 1, res.Error
}

func (r *matchRepo) FinishTurn(ctx context.Context, matchID string, round int, playerID string, score int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&turnPO{}).
		Where("match_id = ? AND round = ? AND player_id = ? AND finished = ?", matchID, round, playerID, false).
		Select("score", "finished").
		Updates(turnPO{Score: &score, Finished: true})
	return res.RowsAffected == 1, res.Error
}
