package conf

import (
	"errors"
	"fmt"
	"time"

	"github.com/yola1107/pokerdice/library/log/zap"
)

const (
	Name    = "pokerdice"
	Version = "v0.1.0"
)

// Duration reads "15s" style strings from yaml, json and env.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Bootstrap struct {
	Server *Server     `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Data   *Data       `json:"data" yaml:"data" envPrefix:"DATA_"`
	Game   *Game       `json:"game" yaml:"game" envPrefix:"GAME_"`
	Notify *Notify     `json:"notify" yaml:"notify" envPrefix:"NOTIFY_"`
	Log    *zap.Config `json:"log" yaml:"log" envPrefix:"LOG_"`
}

type Server struct {
	HTTP      *HTTP      `json:"http" yaml:"http" envPrefix:"HTTP_"`
	Websocket *Websocket `json:"websocket" yaml:"websocket" envPrefix:"WS_"`
}

type HTTP struct {
	Addr    string   `json:"addr" yaml:"addr" env:"ADDR"`
	Timeout Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
}

type Websocket struct {
	Addr         string   `json:"addr" yaml:"addr" env:"ADDR"`
	WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadDeadline Duration `json:"read_deadline" yaml:"read_deadline" env:"READ_DEADLINE"`
	SendChanSize int      `json:"send_chan_size" yaml:"send_chan_size" env:"SEND_CHAN_SIZE"`
	MaxConn      int      `json:"max_conn" yaml:"max_conn" env:"MAX_CONN"`
	// inbound requests per second per session
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst" env:"RATE_BURST"`
}

type Data struct {
	Database *Database `json:"database" yaml:"database" envPrefix:"DB_"`
	Redis    *Redis    `json:"redis" yaml:"redis" envPrefix:"REDIS_"`
}

type Database struct {
	DSN          string `json:"dsn" yaml:"dsn" env:"DSN"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	Debug        bool   `json:"debug" yaml:"debug" env:"DEBUG"`
}

type Redis struct {
	Addr         string   `json:"addr" yaml:"addr" env:"ADDR"`
	Password     string   `json:"password" yaml:"password" env:"PASSWORD"`
	DB           int      `json:"db" yaml:"db" env:"DB"`
	ReadTimeout  Duration `json:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

type Game struct {
	RoundReward int64     `json:"round_reward" yaml:"round_reward" env:"ROUND_REWARD"`
	MatchLog    *MatchLog `json:"match_log" yaml:"match_log" envPrefix:"MATCH_LOG_"`
}

// MatchLog controls the per-match audit files.
type MatchLog struct {
	Open bool   `json:"open" yaml:"open" env:"OPEN"`
	Dir  string `json:"dir" yaml:"dir" env:"DIR"`
}

type Notify struct {
	LobbyHeartbeat Duration `json:"lobby_heartbeat" yaml:"lobby_heartbeat" env:"LOBBY_HEARTBEAT"`
	GameHeartbeat  Duration `json:"game_heartbeat" yaml:"game_heartbeat" env:"GAME_HEARTBEAT"`
	CloseDelay     Duration `json:"close_delay" yaml:"close_delay" env:"CLOSE_DELAY"`
	Workers        int      `json:"workers" yaml:"workers" env:"WORKERS"`
	Tick           Duration `json:"tick" yaml:"tick" env:"TICK"`
}

func Default() *Bootstrap {
	return &Bootstrap{
		Server: &Server{
			HTTP: &HTTP{Addr: ":8000", Timeout: Duration(5 * time.Second)},
			Websocket: &Websocket{
				Addr:         ":8001",
				WriteTimeout: Duration(10 * time.Second),
				ReadDeadline: Duration(60 * time.Second),
				SendChanSize: 128,
				MaxConn:      10000,
				RateLimit:    20,
				RateBurst:    10,
			},
		},
		Data: &Data{
			Database: &Database{DSN: "file:pokerdice.db?_busy_timeout=5000&_journal_mode=WAL", MaxOpenConns: 1},
			Redis: &Redis{
				Addr:         "127.0.0.1:6379",
				ReadTimeout:  Duration(200 * time.Millisecond),
				WriteTimeout: Duration(200 * time.Millisecond),
			},
		},
		Game: &Game{
			RoundReward: 10,
			MatchLog:    &MatchLog{Open: false, Dir: "./logs/matches"},
		},
		Notify: &Notify{
			LobbyHeartbeat: Duration(10 * time.Second),
			GameHeartbeat:  Duration(25 * time.Second),
			CloseDelay:     Duration(2 * time.Second),
			Workers:        64,
			Tick:           Duration(100 * time.Millisecond),
		},
		Log: zap.DefaultConfig(zap.WithAppName(Name)),
	}
}

// Validate reports every invalid section at once.
func (c *Bootstrap) Validate() error {
	if c.Server == nil || c.Data == nil || c.Game == nil || c.Notify == nil || c.Log == nil {
		return errors.New("config: missing section")
	}
	return errors.Join(c.Server.Validate(), c.Data.Validate(), c.Game.Validate(), c.Notify.Validate())
}

func (c *Server) Validate() error {
	if c.HTTP == nil || c.Websocket == nil {
		return errors.New("server: http and websocket are required")
	}
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("server.http.addr is empty"))
	}
	if c.Websocket.Addr == "" {
		errs = append(errs, errors.New("server.websocket.addr is empty"))
	}
	if c.Websocket.SendChanSize <= 0 {
		errs = append(errs, fmt.Errorf("server.websocket.send_chan_size must be positive, got %d", c.Websocket.SendChanSize))
	}
	if c.Websocket.ReadDeadline <= 0 || c.Websocket.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.websocket timeouts must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Data) Validate() error {
	if c.Database == nil || c.Database.DSN == "" {
		return errors.New("data.database.dsn is empty")
	}
	if c.Redis == nil || c.Redis.Addr == "" {
		return errors.New("data.redis.addr is empty")
	}
	return nil
}

func (c *Game) Validate() error {
	if c.RoundReward < 0 {
		return fmt.Errorf("game.round_reward must not be negative, got %d", c.RoundReward)
	}
	if c.MatchLog == nil {
		return errors.New("game.match_log is required")
	}
	return nil
}

func (c *Notify) Validate() error {
	if c.LobbyHeartbeat <= 0 || c.GameHeartbeat <= 0 {
		return errors.New("notify heartbeats must be positive")
	}
	if c.CloseDelay < 0 {
		return errors.New("notify.close_delay must not be negative")
	}
	if c.Tick <= 0 {
		return errors.New("notify.tick must be positive")
	}
	return nil
}
