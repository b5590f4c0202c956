package service

import (
	"context"

	khttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/yola1107/pokerdice/pkg/codes"
)

// HeaderUserID names the acting player on HTTP calls.
const HeaderUserID = "X-User-ID"

const (
	OperationCreateMatch = "/pokerdice.v1.Match/CreateMatch"
	OperationStartRound  = "/pokerdice.v1.Match/StartRound"
	OperationRoll        = "/pokerdice.v1.Match/Roll"
	OperationFinishTurn  = "/pokerdice.v1.Match/FinishTurn"
	OperationGetScores   = "/pokerdice.v1.Match/GetScores"
	OperationGetWinner   = "/pokerdice.v1.Match/GetWinner"
	OperationGetStats    = "/pokerdice.v1.Match/GetStats"
)

func RegisterMatchHTTPServer(s *khttp.Server, srv *MatchService) {
	r := s.Route("/")
	r.POST("/v1/matches", createMatchHandler(srv))
	r.POST("/v1/matches/{id}/rounds", startRoundHandler(srv))
	r.POST("/v1/matches/{id}/roll", rollHandler(srv))
	r.POST("/v1/matches/{id}/finish", finishTurnHandler(srv))
	r.GET("/v1/matches/{id}/scores", getScoresHandler(srv))
	r.GET("/v1/matches/{id}/winner", getWinnerHandler(srv))
	r.GET("/v1/users/{id}/stats", getStatsHandler(srv))
}

// caller is the (user, match) pair a route acts on.
type caller struct {
	UserID  string
	MatchID string
}

func callerFrom(ctx khttp.Context) *caller {
	return &caller{UserID: ctx.Header().Get(HeaderUserID), MatchID: ctx.Vars().Get("id")}
}

func createMatchHandler(srv *MatchService) func(ctx khttp.Context) error {
	return func(ctx khttp.Context) error {
		var in CreateMatchRequest
		if err := ctx.Bind(&in); err != nil {
			return codes.ErrBadRequest.WithCause(err)
		}
		khttp.SetOperation(ctx, OperationCreateMatch)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.CreateMatch(ctx, req.(*CreateMatchRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func startRoundHandler(srv *MatchService) func(ctx khttp.Context) error {
	return func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, OperationStartRound)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.StartRound(ctx, req.(*caller).MatchID)
		})
		out, err := h(ctx, callerFrom(ctx))
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

type rollInput struct {
	*caller
	*RollRequest
}

func rollHandler(srv *MatchService) func(ctx khttp.Context) error {
	return func(ctx khttp.Context) error {
		var body RollRequest
		if err := ctx.Bind(&body); err != nil {
			return codes.ErrBadRequest.WithCause(err)
		}
		khttp.SetOperation(ctx, OperationRoll)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			in := req.(*rollInput)
			return srv.Roll(ctx, in.UserID, in.MatchID, in.RollRequest)
		})
		out, err := h(ctx, &rollInput{caller: callerFrom(ctx), RollRequest: &body})
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func finishTurnHandler(srv *MatchService) func(ctx khttp.Context) error {
	return func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, OperationFinishTurn)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			in := req.(*caller)
			return srv.FinishTurn(ctx, in.UserID, in.MatchID)
		})
		out, err := h(ctx, callerFrom(ctx))
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func getScoresHandler(srv *MatchService) func(ctx khttp.Context) error {
	return func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, OperationGetScores)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.GetScores(ctx, req.(*caller).MatchID)
		})
		out, err := h(ctx, callerFrom(ctx))
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func getWinnerHandler(srv *MatchService) func(ctx khttp.Context) error {
	return func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, OperationGetWinner)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.GetWinner(ctx, req.(*caller).MatchID)
		})
		out, err := h(ctx, callerFrom(ctx))
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func getStatsHandler(srv *MatchService) func(ctx khttp.Context) error {
	return func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, OperationGetStats)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.GetStats(ctx, req.(string))
		})
		out, err := h(ctx, ctx.Vars().Get("id"))
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
