package match

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/library/log/file"
)

// endedRetention is how long an ended match keeps dropping late writes
// before its entry is forgotten.
const endedRetention = time.Minute

type auditFile struct {
	mu sync.Mutex
	fl *file.Log // nil once the match ended

	endedAt time.Time // guarded by matchLogs.mu
}

// matchLogs keeps one audit file per running match. The match_log section is
// read on every write so a reload takes effect at once.
type matchLogs struct {
	c    *conf.LiveGame
	mu   sync.Mutex
	logs map[string]*auditFile
}

func newMatchLogs(c *conf.LiveGame) *matchLogs {
	return &matchLogs{c: c, logs: make(map[string]*auditFile)}
}

func (l *matchLogs) write(matchID, msg string, args ...any) {
	mc := l.c.Load().MatchLog
	if mc == nil || !mc.Open {
		return
	}
	l.mu.Lock()
	af, ok := l.logs[matchID]
	if !ok {
		af = &auditFile{fl: file.NewFileLog(filepath.Join(mc.Dir, fmt.Sprintf("match_%s.log", matchID)))}
		l.logs[matchID] = af
	}
	l.mu.Unlock()

	af.mu.Lock()
	defer af.mu.Unlock()
	if af.fl != nil {
		af.fl.WriteLog(msg, args...)
	}
}

// close releases the file of an ended match. Its entry stays behind for a
// while so writes racing the close are dropped instead of reopening the file.
func (l *matchLogs) close(matchID string) {
	now := time.Now()
	l.mu.Lock()
	af, ok := l.logs[matchID]
	if !ok {
		af = &auditFile{}
		l.logs[matchID] = af
	}
	af.endedAt = now
	for id, e := range l.logs {
		if !e.endedAt.IsZero() && now.Sub(e.endedAt) > endedRetention {
			delete(l.logs, id)
		}
	}
	l.mu.Unlock()

	af.release()
}

func (l *matchLogs) closeAll() {
	l.mu.Lock()
	logs := l.logs
	l.logs = make(map[string]*auditFile)
	l.mu.Unlock()
	for _, af := range logs {
		af.release()
	}
}

func (af *auditFile) release() {
	af.mu.Lock()
	defer af.mu.Unlock()
	if af.fl != nil {
		_ = af.fl.Close()
		af.fl = nil
	}
}

func (l *matchLogs) matchCreated(m *Match) {
	l.write(m.ID, "[开局] lobby=%s players=%v rounds=%d", m.LobbyID, m.Players, m.TotalRounds)
}

func (l *matchLogs) roundStarted(matchID string, res *StartResult) {
	l.write(matchID, "[第%d轮] order=%v scores=%+v", res.Round, res.Order, res.Scoreboard)
}

func (l *matchLogs) rolled(matchID string, res *RollResult, locked []int) {
	l.write(matchID, "[掷骰] round=%d player=%s locked=%v hand=%v rolls=%d", res.Round, res.PlayerID, locked, res.Hand, res.RollCount)
}

func (l *matchLogs) finished(matchID string, res *FinishResult) {
	l.write(matchID, "[结束回合] round=%d player=%s hand=%v rank=%s points=%d", res.Round, res.PlayerID, res.Hand, res.Rank, res.Points)
}

func (l *matchLogs) roundEnded(matchID string, res *RoundResult) {
	l.write(matchID, "[本轮结算] round=%d/%d winner=%s hand=%v rank=%s points=%d reward=%d",
		res.Round, res.TotalRounds, res.WinnerID, res.Hand, res.Rank, res.Points, res.Reward)
}

func (l *matchLogs) gameEnded(matchID string, res *GameResult) {
	l.write(matchID, "[游戏结束] winner=%+v final_round=%d standings=%+v", res.Winner, res.FinalRound, res.Standings)
	l.close(matchID)
}
