package data

import (
	"time"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/internal/model"
)

type matchPO struct {
	ID          string   `gorm:"primaryKey;size:36"`
	LobbyID     string   `gorm:"size:36;index"`
	TotalRounds int      `gorm:"not null"`
	Players     []string `gorm:"serializer:json"`
	Status      int8     `gorm:"not null;index"`
	WinnerID    string   `gorm:"size:36"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (matchPO) TableName() string { return "matches" }

// roundPO.WinnerID stays NULL until the round is resolved.
type roundPO struct {
	MatchID   string   `gorm:"primaryKey;size:36"`
	Number    int      `gorm:"primaryKey;autoIncrement:false"`
	WinnerID  *string  `gorm:"size:36"`
	Order     []string `gorm:"column:turn_order;serializer:json"`
	CreatedAt time.Time
}

func (roundPO) TableName() string { return "rounds" }

type turnPO struct {
	MatchID   string     `gorm:"primaryKey;size:36"`
	Round     int        `gorm:"primaryKey;autoIncrement:false"`
	PlayerID  string     `gorm:"primaryKey;size:36"`
	Hand      model.Hand `gorm:"serializer:json"`
	RollCount int        `gorm:"not null;default:0"`
	Score     *int
	Finished  bool `gorm:"not null;default:false;index"`
	UpdatedAt time.Time
}

func (turnPO) TableName() string { return "turns" }

func toMatchPO(m *match.Match) *matchPO {
	return &matchPO{
		ID:          m.ID,
		LobbyID:     m.LobbyID,
		TotalRounds: m.TotalRounds,
		Players:     m.Players,
		Status:      int8(m.Status),
		WinnerID:    m.WinnerID,
		CreatedAt:   m.CreatedAt,
	}
}

func (po *matchPO) toBiz() *match.Match {
	return &match.Match{
		ID:          po.ID,
		LobbyID:     po.LobbyID,
		TotalRounds: po.TotalRounds,
		Players:     po.Players,
		Status:      match.Status(po.Status),
		WinnerID:    po.WinnerID,
		CreatedAt:   po.CreatedAt,
	}
}

func (po *roundPO) toBiz() *match.Round {
	r := &match.Round{MatchID: po.MatchID, Number: po.Number, Order: po.Order}
	if po.WinnerID != nil {
		r.WinnerID = *po.WinnerID
	}
	return r
}

func (po *turnPO) toBiz() *match.Turn {
	return &match.Turn{
		MatchID:   po.MatchID,
		Round:     po.Round,
		PlayerID:  po.PlayerID,
		Hand:      po.Hand,
		RollCount: po.RollCount,
		Score:     po.Score,
		Finished:  po.Finished,
	}
}
