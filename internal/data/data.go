package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/pkg/xredis"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewData,
	NewAccountRepo,
	wire.Bind(new(match.Transactor), new(*Data)),
	wire.Bind(new(match.AccountRepo), new(*AccountRepo)),
)

// Data holds the match database and the account store client.
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
	log *log.Helper
}

func NewData(db *gorm.DB, rdb *redis.Client, logger log.Logger) (*Data, func(), error) {
	d := &Data{
		db:  db,
		rdb: rdb,
		log: log.NewHelper(log.With(logger, "module", "data")),
	}
	cleanup := func() {
		d.log.Info("closing the data resources")
		if sqlDB, err := d.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				d.log.Errorf("close database: %v", err)
			}
		}
		if err := d.rdb.Close(); err != nil {
			d.log.Errorf("close redis: %v", err)
		}
	}
	return d, cleanup, nil
}

// NewDB opens the sqlite database and migrates the match tables.
func NewDB(c *conf.Data) (*gorm.DB, error) {
	level := logger.Silent
	if c.Database.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(c.Database.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.Database.MaxOpenConns)
	}
	if err := db.AutoMigrate(&matchPO{}, &roundPO{}, &turnPO{}); err != nil {
		return nil, err
	}
	return db, nil
}

func NewRedis(c *conf.Data) *redis.Client {
	return xredis.NewClient(
		xredis.WithAddress(c.Redis.Addr),
		xredis.WithPassword(c.Redis.Password),
		xredis.WithDB(c.Redis.DB),
		xredis.WithTimeouts(0, c.Redis.ReadTimeout.Std(), c.Redis.WriteTimeout.Std()),
	)
}

// InTx runs fn on a repo bound to one transaction. fn returning an error
// rolls every write back.
func (d *Data) InTx(ctx context.Context, fn func(ctx context.Context, repo match.Repo) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &matchRepo{db: tx})
	})
}
