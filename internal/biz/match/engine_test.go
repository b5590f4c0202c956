package match_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/internal/data"
	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/internal/notify"
	"github.com/yola1107/pokerdice/pkg/codes"
)

// scriptedDice hands out queued faces and keeps the roster order.
type scriptedDice struct {
	mu    sync.Mutex
	faces []model.Face
}

func (d *scriptedDice) push(faces ...model.Face) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faces = append(d.faces, faces...)
}

func (d *scriptedDice) Face() model.Face {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.faces) == 0 {
		return model.Nine
	}
	f := d.faces[0]
	d.faces = d.faces[1:]
	return f
}

func (d *scriptedDice) Permute(ids []string) []string {
	return append([]string(nil), ids...)
}

type fakeAccounts struct {
	mu         sync.Mutex
	coins      map[string]int64
	wins       map[string]int
	losses     map[string]int
	failCredit error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{coins: map[string]int64{}, wins: map[string]int{}, losses: map[string]int{}}
}

func (a *fakeAccounts) CreditReward(_ context.Context, userID string, amount int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failCredit != nil {
		return a.failCredit
	}
	a.coins[userID] += amount
	return nil
}

func (a *fakeAccounts) RecordResult(_ context.Context, userID string, won bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if won {
		a.wins[userID]++
	} else {
		a.losses[userID]++
	}
	return nil
}

func (a *fakeAccounts) GetStats(_ context.Context, userID string) (*match.Stats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &match.Stats{UserID: userID, Coins: a.coins[userID], Wins: a.wins[userID], Losses: a.losses[userID]}, nil
}

func (a *fakeAccounts) setFailCredit(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failCredit = err
}

type recorded struct {
	kind    notify.Kind
	room    string
	typ     string
	payload any
}

type recorder struct {
	mu      sync.Mutex
	events  []recorded
	closing []string
}

func (r *recorder) Broadcast(_ context.Context, kind notify.Kind, roomID string, ev *notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{kind: kind, room: roomID, typ: ev.Type, payload: ev.Payload})
}

func (r *recorder) CloseRoomLater(kind notify.Kind, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closing = append(r.closing, fmt.Sprintf("%s:%s", kind, roomID))
}

func (r *recorder) types(kind notify.Kind, roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.kind == kind && e.room == roomID {
			out = append(out, e.typ)
		}
	}
	return out
}

func (r *recorder) last(typ string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].typ == typ {
			return r.events[i].payload
		}
	}
	return nil
}

type fixture struct {
	engine   *match.Engine
	dice     *scriptedDice
	accounts *fakeAccounts
	bc       *recorder
	game     *conf.LiveGame
	logDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dc := &conf.Data{
		Database: &conf.Database{DSN: fmt.Sprintf("file:engine_%s?mode=memory&cache=shared", name), MaxOpenConns: 1},
		Redis:    &conf.Redis{Addr: "127.0.0.1:6379"},
	}
	db, err := data.NewDB(dc)
	require.NoError(t, err)
	d, cleanup, err := data.NewData(db, data.NewRedis(dc), log.DefaultLogger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	f := &fixture{
		dice:     &scriptedDice{},
		accounts: newFakeAccounts(),
		bc:       &recorder{},
		logDir:   t.TempDir(),
	}
	f.game = conf.NewLive(&conf.Game{RoundReward: 10, MatchLog: &conf.MatchLog{Open: true, Dir: f.logDir}})
	engine, stop := match.NewEngine(f.game, d, f.accounts, f.dice, f.bc, log.DefaultLogger)
	t.Cleanup(stop)
	f.engine = engine
	return f
}

// newMatch creates a match for n fresh players and starts round one.
func (f *fixture) newMatch(t *testing.T, n, rounds int) (*match.Match, []string) {
	t.Helper()
	players := make([]string, n)
	for i := range players {
		players[i] = uuid.NewString()
	}
	m, err := f.engine.CreateMatch(context.Background(), uuid.NewString(), players, rounds)
	require.NoError(t, err)
	_, err = f.engine.StartRound(context.Background(), m.ID)
	require.NoError(t, err)
	return m, players
}

// play rolls hand once for userID and finishes the turn.
func (f *fixture) play(t *testing.T, userID, matchID string, hand model.Hand) *match.FinishResult {
	t.Helper()
	ctx := context.Background()
	f.dice.push(hand...)
	_, err := f.engine.Roll(ctx, userID, matchID, nil)
	require.NoError(t, err)
	res, err := f.engine.FinishTurn(ctx, userID, matchID)
	require.NoError(t, err)
	return res
}

func hand(faces ...model.Face) model.Hand { return faces }

var (
	fiveAces  = hand(model.Ace, model.Ace, model.Ace, model.Ace, model.Ace)
	fourKings = hand(model.King, model.King, model.King, model.King, model.Queen)
)

func TestEngine_CreateMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()
	lobby := uuid.NewString()

	tests := []struct {
		name    string
		lobby   string
		roster  []string
		rounds  int
		wantErr error
	}{
		{name: "bad lobby", lobby: "lobby-1", roster: []string{a}, rounds: 1, wantErr: codes.ErrInvalidLobbyID},
		{name: "zero rounds", lobby: lobby, roster: []string{a}, rounds: 0, wantErr: codes.ErrInvalidRoundCount},
		{name: "bad player", lobby: lobby, roster: []string{a, "bob"}, rounds: 1, wantErr: codes.ErrInvalidUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateMatch(ctx, tt.lobby, tt.roster, tt.rounds)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	m, err := f.engine.CreateMatch(ctx, lobby, []string{a, b, a}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, m.Players)
	assert.Equal(t, match.StatusActive, m.Status)
	assert.Equal(t, []string{match.EventGameStarted}, f.bc.types(notify.KindLobby, lobby))
	assert.Equal(t, []string{"lobby:" + lobby}, f.bc.closing)

	started := f.bc.last(match.EventGameStarted).(*match.GameStartedPayload)
	assert.Equal(t, m.ID, started.MatchID)
	assert.Equal(t, 3, started.TotalRounds)
}

func TestEngine_SingleRoundGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, p := f.newMatch(t, 2, 1)
	a, b := p[0], p[1]

	fa := f.play(t, a, m.ID, fiveAces)
	assert.Equal(t, model.FiveOfAKind, fa.Rank)
	assert.Equal(t, 100, fa.Points)
	assert.Nil(t, fa.Resolved)

	fb := f.play(t, b, m.ID, fourKings)
	require.NotNil(t, fb.Resolved)
	assert.Equal(t, a, fb.Resolved.WinnerID)
	assert.Equal(t, model.FiveOfAKind, fb.Resolved.Rank)
	assert.Equal(t, 100, fb.Resolved.Points)
	require.NotNil(t, fb.Resolved.Game)
	assert.Equal(t, a, fb.Resolved.Game.Winner.PlayerID)
	assert.Equal(t, 1, fb.Resolved.Game.FinalRound)

	assert.Equal(t, []string{
		match.EventRoundStarted,
		match.EventPlayerRolled,
		match.EventPlayerFinishedTurn,
		match.EventPlayerRolled,
		match.EventPlayerFinishedTurn,
		match.EventRoundEnded,
		match.EventGameEnded,
	}, f.bc.types(notify.KindGame, m.ID))
	assert.Contains(t, f.bc.closing, "game:"+m.ID)

	ended := f.bc.last(match.EventRoundEnded).(*match.RoundEndedPayload)
	assert.Equal(t, match.RoundWinner{ID: a, Points: 100, HandRank: "FIVE_OF_A_KIND"}, ended.Winner)
	over := f.bc.last(match.EventGameEnded).(*match.GameEndedPayload)
	assert.Equal(t, match.GameWinner{ID: a, TotalPoints: 100, RoundsWon: 1}, over.Winner)

	assert.Equal(t, int64(10), f.accounts.coins[a])
	assert.Zero(t, f.accounts.coins[b])
	assert.Equal(t, 1, f.accounts.wins[a])
	assert.Equal(t, 1, f.accounts.losses[b])

	w, err := f.engine.GetGameWinner(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, match.Standing{PlayerID: a, Points: 100, RoundsWon: 1}, *w)

	_, err = f.engine.StartRound(ctx, m.ID)
	assert.True(t, errors.Is(err, codes.ErrGameAlreadyFinished))
	_, err = f.engine.Roll(ctx, a, m.ID, nil)
	assert.True(t, errors.Is(err, codes.ErrGameAlreadyFinished))
	_, err = f.engine.ResolveRoundWinner(ctx, m.ID)
	assert.True(t, errors.Is(err, codes.ErrNoRoundInProgress))

	_, err = os.Stat(filepath.Join(f.logDir, "match_"+m.ID+".log"))
	assert.NoError(t, err)
}

func TestEngine_RollKeepsLockedDice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, p := f.newMatch(t, 2, 1)

	// first roll ignores locks
	f.dice.push(model.Ace, model.King, model.Queen, model.Jack, model.Ten)
	first, err := f.engine.Roll(ctx, p[0], m.ID, []int{0, 1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, hand(model.Ace, model.King, model.Queen, model.Jack, model.Ten), first.Hand)
	assert.Equal(t, 2, first.RollsLeft())

	f.dice.push(model.Nine, model.Nine)
	second, err := f.engine.Roll(ctx, p[0], m.ID, []int{0, 2, 4, 7, -1})
	require.NoError(t, err)
	assert.Equal(t, hand(model.Ace, model.Nine, model.Queen, model.Nine, model.Ten), second.Hand)
	assert.Equal(t, 2, second.RollCount)

	rolled := f.bc.last(match.EventPlayerRolled).(*match.PlayerRolledPayload)
	assert.Equal(t, second.Hand, rolled.NewHand)
	assert.Equal(t, 2, rolled.RollCount)

	_, err = f.engine.Roll(ctx, p[0], m.ID, nil)
	require.NoError(t, err)
	_, err = f.engine.Roll(ctx, p[0], m.ID, nil)
	assert.True(t, errors.Is(err, codes.ErrTooManyRolls))
}

func TestEngine_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	players := []string{uuid.NewString(), uuid.NewString()}
	m, err := f.engine.CreateMatch(ctx, uuid.NewString(), players, 2)
	require.NoError(t, err)
	a, b := players[0], players[1]

	_, err = f.engine.Roll(ctx, a, m.ID, nil)
	assert.True(t, errors.Is(err, codes.ErrRoundNotStarted), "got %v", err)

	_, err = f.engine.StartRound(ctx, m.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"roll bad user", func() error { _, err := f.engine.Roll(ctx, "u1", m.ID, nil); return err }, codes.ErrInvalidUserID},
		{"roll bad match", func() error { _, err := f.engine.Roll(ctx, a, "m1", nil); return err }, codes.ErrInvalidMatchID},
		{"roll unknown match", func() error { _, err := f.engine.Roll(ctx, a, uuid.NewString(), nil); return err }, codes.ErrMatchNotFound},
		{"roll stranger", func() error { _, err := f.engine.Roll(ctx, uuid.NewString(), m.ID, nil); return err }, codes.ErrUserNotInGame},
		{"finish empty hand", func() error { _, err := f.engine.FinishTurn(ctx, a, m.ID); return err }, codes.ErrEmptyHand},
		{"start round in progress", func() error { _, err := f.engine.StartRound(ctx, m.ID); return err }, codes.ErrAllPlayersNotFinished},
		{"resolve early", func() error { _, err := f.engine.ResolveRoundWinner(ctx, m.ID); return err }, codes.ErrAllPlayersNotFinished},
		{"winner mid round", func() error { _, err := f.engine.GetGameWinner(ctx, m.ID); return err }, codes.ErrGameNotFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	// b rolls out of order but may not finish before a
	f.dice.push(fourKings...)
	_, err = f.engine.Roll(ctx, b, m.ID, nil)
	require.NoError(t, err)
	_, err = f.engine.FinishTurn(ctx, b, m.ID)
	assert.True(t, errors.Is(err, codes.ErrNotPlayerTurn), "got %v", err)

	f.play(t, a, m.ID, fiveAces)
	_, err = f.engine.FinishTurn(ctx, a, m.ID)
	assert.True(t, errors.Is(err, codes.ErrTurnAlreadyFinished), "got %v", err)
	_, err = f.engine.Roll(ctx, a, m.ID, nil)
	assert.True(t, errors.Is(err, codes.ErrTurnAlreadyFinished), "got %v", err)
}

func TestEngine_EmptyRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.engine.CreateMatch(ctx, uuid.NewString(), nil, 1)
	require.NoError(t, err)
	_, err = f.engine.StartRound(ctx, m.ID)
	assert.True(t, errors.Is(err, codes.ErrNoPlayersInGame))
	_, err = f.engine.GetGameWinner(ctx, m.ID)
	assert.True(t, errors.Is(err, codes.ErrNoRoundInProgress))
}

func TestEngine_TieBreakByWeight(t *testing.T) {
	f := newFixture(t)
	m, p := f.newMatch(t, 2, 1)

	// both two pair; K K Q Q J weighs 14, A A K K 9 weighs 12
	f.play(t, p[0], m.ID, hand(model.Ace, model.Ace, model.King, model.King, model.Nine))
	res := f.play(t, p[1], m.ID, hand(model.King, model.King, model.Queen, model.Queen, model.Jack))

	require.NotNil(t, res.Resolved)
	assert.Equal(t, p[1], res.Resolved.WinnerID)
	assert.Equal(t, model.TwoPair, res.Resolved.Rank)
}

func TestEngine_MultiRoundScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, p := f.newMatch(t, 3, 2)

	f.play(t, p[0], m.ID, fourKings)
	f.play(t, p[1], m.ID, hand(model.Ace, model.Ace, model.King, model.Queen, model.Jack))
	r1 := f.play(t, p[2], m.ID, hand(model.Ace, model.King, model.Queen, model.Jack, model.Ten))
	require.NotNil(t, r1.Resolved)
	assert.Equal(t, p[0], r1.Resolved.WinnerID)
	assert.Nil(t, r1.Resolved.Game)

	scores, err := f.engine.GetScores(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []match.Standing{
		{PlayerID: p[0], Points: 60, RoundsWon: 1},
		{PlayerID: p[2], Points: 40},
		{PlayerID: p[1], Points: 10},
	}, scores)

	st, err := f.engine.StartRound(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, scores, st.Scoreboard)

	f.play(t, p[0], m.ID, hand(model.Nine, model.Ten, model.Jack, model.Queen, model.Ace))
	f.play(t, p[1], m.ID, fiveAces)
	r2 := f.play(t, p[2], m.ID, hand(model.Ten, model.Ten, model.Ten, model.Nine, model.Nine))
	require.NotNil(t, r2.Resolved)
	assert.Equal(t, p[1], r2.Resolved.WinnerID)
	require.NotNil(t, r2.Resolved.Game)

	// 110 vs 90 vs 60
	assert.Equal(t, p[1], r2.Resolved.Game.Winner.PlayerID)
	assert.Equal(t, 110, r2.Resolved.Game.Winner.Points)
	assert.Equal(t, 2, r2.Resolved.Game.FinalRound)
	assert.Equal(t, 1, f.accounts.wins[p[1]])
	assert.Equal(t, 1, f.accounts.losses[p[0]])
	assert.Equal(t, 1, f.accounts.losses[p[2]])
	assert.Equal(t, int64(10), f.accounts.coins[p[0]])
	assert.Equal(t, int64(10), f.accounts.coins[p[1]])
}

func TestEngine_FailedResolutionRecoversOnStartRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, p := f.newMatch(t, 2, 2)

	f.accounts.setFailCredit(errors.New("account store down"))
	f.play(t, p[0], m.ID, fiveAces)
	res := f.play(t, p[1], m.ID, fourKings)
	assert.Nil(t, res.Resolved)
	assert.NotContains(t, f.bc.types(notify.KindGame, m.ID), match.EventRoundEnded)

	scores, err := f.engine.GetScores(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, scores[0].RoundsWon)

	f.accounts.setFailCredit(nil)
	st, err := f.engine.StartRound(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, 1, st.Scoreboard[0].RoundsWon)
	assert.Equal(t, int64(10), f.accounts.coins[p[0]])

	types := f.bc.types(notify.KindGame, m.ID)
	assert.Equal(t, []string{match.EventRoundEnded, match.EventRoundStarted}, types[len(types)-2:])
}

func TestEngine_ConcurrentFinish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, p := f.newMatch(t, 1, 1)

	f.dice.push(fiveAces...)
	_, err := f.engine.Roll(ctx, p[0], m.ID, nil)
	require.NoError(t, err)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		resolved int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.FinishTurn(ctx, p[0], m.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				if res.Resolved != nil {
					resolved++
				}
				return
			}
			assert.True(t, errors.Is(err, codes.ErrTurnAlreadyFinished) || errors.Is(err, codes.ErrGameAlreadyFinished), "got %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, resolved)
	types := f.bc.types(notify.KindGame, m.ID)
	count := func(typ string) int {
		c := 0
		for _, tp := range types {
			if tp == typ {
				c++
			}
		}
		return c
	}
	assert.Equal(t, 1, count(match.EventPlayerFinishedTurn))
	assert.Equal(t, 1, count(match.EventRoundEnded))
	assert.Equal(t, 1, count(match.EventGameEnded))
	assert.Equal(t, 1, f.accounts.wins[p[0]])
}

func TestEngine_GetStats(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.GetStats(context.Background(), "nobody")
	assert.True(t, errors.Is(err, codes.ErrInvalidUserID))

	uid := uuid.NewString()
	st, err := f.engine.GetStats(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, uid, st.UserID)
}

func TestEngine_ResolveIgnoresCallerCancel(t *testing.T) {
	f := newFixture(t)
	m, p := f.newMatch(t, 2, 2)

	f.accounts.setFailCredit(errors.New("account store down"))
	f.play(t, p[0], m.ID, fiveAces)
	res := f.play(t, p[1], m.ID, fourKings)
	require.Nil(t, res.Resolved)
	f.accounts.setFailCredit(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rr, err := f.engine.ResolveRoundWinner(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, p[0], rr.WinnerID)
	assert.Equal(t, int64(10), f.accounts.coins[p[0]])
}

func TestEngine_ReloadWhileRunning(t *testing.T) {
	f := newFixture(t)
	dir := f.game.Load().MatchLog.Dir

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			f.game.Store(&conf.Game{
				RoundReward: int64(10 + i%5),
				MatchLog:    &conf.MatchLog{Open: i%2 == 0, Dir: dir},
			})
			time.Sleep(50 * time.Microsecond)
		}
	}()

	for i := 0; i < 5; i++ {
		m, p := f.newMatch(t, 2, 1)
		f.play(t, p[0], m.ID, fiveAces)
		res := f.play(t, p[1], m.ID, fourKings)
		require.NotNil(t, res.Resolved)
		assert.GreaterOrEqual(t, res.Resolved.Reward, int64(10))
		assert.Less(t, res.Resolved.Reward, int64(15))
	}
	close(stop)
	<-done

	f.game.Store(&conf.Game{RoundReward: 50, MatchLog: &conf.MatchLog{Dir: dir}})
	m, p := f.newMatch(t, 2, 1)
	f.play(t, p[0], m.ID, fiveAces)
	res := f.play(t, p[1], m.ID, fourKings)
	require.NotNil(t, res.Resolved)
	assert.Equal(t, int64(50), res.Resolved.Reward)
	assert.Equal(t, int64(50), f.accounts.coins[p[0]])

	// match_log.open is off now
	_, err := os.Stat(filepath.Join(dir, "match_"+m.ID+".log"))
	assert.True(t, os.IsNotExist(err))
}
