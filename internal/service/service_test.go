package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/internal/notify"
	"github.com/yola1107/pokerdice/pkg/codes"
)

type fakeEngine struct {
	roll        func(userID, matchID string, locked []int) (*match.RollResult, error)
	finish      func(userID, matchID string) (*match.FinishResult, error)
	checkMember func(userID, matchID string) error
}

func (e *fakeEngine) CreateMatch(_ context.Context, lobbyID string, roster []string, totalRounds int) (*match.Match, error) {
	return &match.Match{ID: "m-1", LobbyID: lobbyID, Players: roster, TotalRounds: totalRounds, Status: match.StatusActive}, nil
}

func (e *fakeEngine) StartRound(_ context.Context, _ string) (*match.StartResult, error) {
	return &match.StartResult{Round: 1, Order: []string{"b", "a"}}, nil
}

func (e *fakeEngine) Roll(_ context.Context, userID, matchID string, locked []int) (*match.RollResult, error) {
	return e.roll(userID, matchID, locked)
}

func (e *fakeEngine) FinishTurn(_ context.Context, userID, matchID string) (*match.FinishResult, error) {
	return e.finish(userID, matchID)
}

func (e *fakeEngine) GetScores(_ context.Context, _ string) ([]match.Standing, error) {
	return []match.Standing{{PlayerID: "a", Points: 30, RoundsWon: 1}}, nil
}

func (e *fakeEngine) GetGameWinner(_ context.Context, _ string) (*match.Standing, error) {
	return nil, codes.ErrGameNotFinished
}

func (e *fakeEngine) GetStats(_ context.Context, userID string) (*match.Stats, error) {
	return &match.Stats{UserID: userID, Coins: 20, Wins: 2}, nil
}

func (e *fakeEngine) CheckMember(_ context.Context, userID, matchID string) error {
	return e.checkMember(userID, matchID)
}

func newTestService(e *fakeEngine) *MatchService {
	return NewMatchService(e, log.DefaultLogger)
}

func TestMatchService_FinishTurnReply(t *testing.T) {
	h := model.Hand{model.Ace, model.Ace, model.Ace, model.Ace, model.Ace}
	svc := newTestService(&fakeEngine{
		finish: func(userID, _ string) (*match.FinishResult, error) {
			return &match.FinishResult{
				Round: 2, PlayerID: userID, Hand: h, Rank: model.FiveOfAKind, Points: 100,
				Resolved: &match.RoundResult{
					Round: 2, WinnerID: userID, Rank: model.FiveOfAKind, Points: 100,
					Game: &match.GameResult{Winner: match.Standing{PlayerID: userID, Points: 140, RoundsWon: 2}, FinalRound: 2},
				},
			}, nil
		},
	})

	reply, err := svc.FinishTurn(context.Background(), "a", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "FIVE_OF_A_KIND", reply.HandRank)
	assert.Equal(t, &match.RoundWinner{ID: "a", Points: 100, HandRank: "FIVE_OF_A_KIND"}, reply.RoundWinner)
	assert.Equal(t, &match.GameWinner{ID: "a", TotalPoints: 140, RoundsWon: 2}, reply.GameWinner)
}

func TestMatchService_Dispatch(t *testing.T) {
	var gotLocked []int
	svc := newTestService(&fakeEngine{
		roll: func(_, _ string, locked []int) (*match.RollResult, error) {
			gotLocked = locked
			return &match.RollResult{Round: 1, RollCount: 2}, nil
		},
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		kind    notify.Kind
		cmd     string
		body    string
		wantErr error
	}{
		{name: "roll", kind: notify.KindGame, cmd: CmdRoll, body: `{"lockedIndices":[0,2]}`},
		{name: "roll without body", kind: notify.KindGame, cmd: CmdRoll},
		{name: "bad body", kind: notify.KindGame, cmd: CmdRoll, body: `{"lockedIndices":"x"}`, wantErr: codes.ErrBadRequest},
		{name: "unknown", kind: notify.KindGame, cmd: "fold", wantErr: codes.ErrUnknownCommand},
		{name: "lobby", kind: notify.KindLobby, cmd: CmdScores, wantErr: codes.ErrUnknownCommand},
		{name: "winner", kind: notify.KindGame, cmd: CmdWinner, wantErr: codes.ErrGameNotFinished},
		{name: "scores", kind: notify.KindGame, cmd: CmdScores},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.Dispatch(ctx, tt.kind, "a", "m-1", tt.cmd, []byte(tt.body))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, out)
		})
	}

	_, err := svc.Dispatch(ctx, notify.KindGame, "a", "m-1", CmdRoll, []byte(`{"lockedIndices":[1,3]}`))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, gotLocked)
}

func TestMatchService_Authorize(t *testing.T) {
	member := uuid.NewString()
	svc := newTestService(&fakeEngine{
		checkMember: func(userID, _ string) error {
			if userID != member {
				return codes.ErrUserNotInGame
			}
			return nil
		},
	})
	ctx := context.Background()

	assert.True(t, errors.Is(svc.Authorize(ctx, notify.KindGame, "bob", uuid.NewString()), codes.ErrInvalidUserID))
	assert.True(t, errors.Is(svc.Authorize(ctx, notify.KindGame, uuid.NewString(), uuid.NewString()), codes.ErrUserNotInGame))
	assert.NoError(t, svc.Authorize(ctx, notify.KindGame, member, uuid.NewString()))
	assert.True(t, errors.Is(svc.Authorize(ctx, notify.KindLobby, member, "lobby"), codes.ErrInvalidLobbyID))
	assert.NoError(t, svc.Authorize(ctx, notify.KindLobby, member, uuid.NewString()))
}

func newHTTPTestServer(t *testing.T, e *fakeEngine) *httptest.Server {
	t.Helper()
	srv := khttp.NewServer()
	RegisterMatchHTTPServer(srv, newTestService(e))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url, userID, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

func TestMatchHTTP(t *testing.T) {
	ts := newHTTPTestServer(t, &fakeEngine{
		roll: func(userID, matchID string, locked []int) (*match.RollResult, error) {
			if userID != "alice" {
				return nil, codes.ErrNotPlayerTurn
			}
			return &match.RollResult{Round: 1, PlayerID: userID, Hand: model.Hand{model.Ace, model.King, model.Queen, model.Jack, model.Ten}, RollCount: 1}, nil
		},
	})

	status, body := doRequest(t, http.MethodPost, ts.URL+"/v1/matches", "", `{"lobbyId":"l-1","players":["alice","bob"],"totalRounds":3}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "m-1", body["id"])
	assert.Equal(t, "ACTIVE", body["status"])

	status, body = doRequest(t, http.MethodPost, ts.URL+"/v1/matches/m-1/roll", "alice", `{"lockedIndices":[1]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"ACE", "KING", "QUEEN", "JACK", "TEN"}, body["hand"])
	assert.Equal(t, float64(2), body["rollsLeft"])

	status, body = doRequest(t, http.MethodPost, ts.URL+"/v1/matches/m-1/roll", "bob", `{}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_PLAYER_TURN", body["reason"])

	status, body = doRequest(t, http.MethodGet, ts.URL+"/v1/matches/m-1/winner", "", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "GAME_NOT_FINISHED", body["reason"])

	status, body = doRequest(t, http.MethodGet, ts.URL+"/v1/users/u-1/stats", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u-1", body["id"])
	assert.Equal(t, float64(20), body["coins"])
}
