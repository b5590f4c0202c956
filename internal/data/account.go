package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/pkg/xredis"
)

const fieldCoins = "coins"

// recordResult bumps wins or losses and keeps the streak fields in step.
// KEYS[1] account hash, ARGV[1] "1" for a win.
var recordResult = redis.NewScript(`
local key = KEYS[1]
if ARGV[1] == "1" then
	redis.call("HINCRBY", key, "wins", 1)
	local streak = redis.call("HINCRBY", key, "streak", 1)
	local best = tonumber(redis.call("HGET", key, "best_streak") or "0")
	if streak > best then
		redis.call("HSET", key, "best_streak", streak)
	end
	return streak
end
redis.call("HINCRBY", key, "losses", 1)
redis.call("HSET", key, "streak", 0)
return 0
`)

type accountPO struct {
	Coins      int64 `redis:"coins"`
	Wins       int   `redis:"wins"`
	Losses     int   `redis:"losses"`
	Streak     int   `redis:"streak"`
	BestStreak int   `redis:"best_streak"`
}

// AccountRepo keeps coins and win statistics in one redis hash per user.
type AccountRepo struct {
	rdb *redis.Client
	log *log.Helper
}

func NewAccountRepo(d *Data, logger log.Logger) *AccountRepo {
	return &AccountRepo{
		rdb: d.rdb,
		log: log.NewHelper(log.With(logger, "module", "data/account")),
	}
}

func accountKey(userID string) string {
	return xredis.Key("user", userID)
}

func (r *AccountRepo) CreditReward(ctx context.Context, userID string, amount int64) error {
	coins, err := r.rdb.HIncrBy(ctx, accountKey(userID), fieldCoins, amount).Result()
	if err != nil {
		return err
	}
	r.log.Debugf("reward credited. uid=%s amount=%d coins=%d", userID, amount, coins)
	return nil
}

func (r *AccountRepo) RecordResult(ctx context.Context, userID string, won bool) error {
	flag := "0"
	if won {
		flag = "1"
	}
	return recordResult.Run(ctx, r.rdb, []string{accountKey(userID)}, flag).Err()
}

func (r *AccountRepo) GetStats(ctx context.Context, userID string) (*match.Stats, error) {
	var po accountPO
	if err := r.rdb.HGetAll(ctx, accountKey(userID)).Scan(&po); err != nil {
		return nil, err
	}
	return &match.Stats{
		UserID:     userID,
		Coins:      po.Coins,
		Wins:       po.Wins,
		Losses:     po.Losses,
		Streak:     po.Streak,
		BestStreak: po.BestStreak,
	}, nil
}
