package notify

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/library/work"
)

// Notifier fans events out to the lobby and game rooms of this process.
type Notifier struct {
	c          *conf.LiveNotify
	log        *log.Helper
	worker     *work.Worker
	registries map[Kind]*registry
	heartbeats []int64
}

// NewNotifier starts the heartbeat timers. The cleanup stops them and closes
// every remaining sink. Heartbeat intervals and pool sizes apply at start; the
// close delay follows reloads.
func NewNotifier(c *conf.LiveNotify, logger log.Logger) (*Notifier, func(), error) {
	cfg := c.Load()
	m, err := newMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("notify metrics: %w", err)
	}
	worker, err := work.NewWorker(cfg.Workers, cfg.Tick.Std())
	if err != nil {
		return nil, nil, err
	}

	n := &Notifier{
		c:      c,
		log:    log.NewHelper(log.With(logger, "module", "notify")),
		worker: worker,
		registries: map[Kind]*registry{
			KindLobby: newRegistry(KindLobby, m, logger),
			KindGame:  newRegistry(KindGame, m, logger),
		},
	}
	n.heartbeats = []int64{
		worker.Forever(cfg.LobbyHeartbeat.Std(), n.registries[KindLobby].heartbeat),
		worker.Forever(cfg.GameHeartbeat.Std(), n.registries[KindGame].heartbeat),
	}
	n.log.Infof("notifier started. lobby_heartbeat=%v game_heartbeat=%v", cfg.LobbyHeartbeat.Std(), cfg.GameHeartbeat.Std())
	return n, n.Stop, nil
}

func (n *Notifier) registry(kind Kind) (*registry, error) {
	r, ok := n.registries[kind]
	if !ok {
		return nil, fmt.Errorf("notify: unknown room kind %q", kind)
	}
	return r, nil
}

// Subscribe makes sink the only live sink of userID in roomID.
func (n *Notifier) Subscribe(kind Kind, userID, roomID string, sink Sink) error {
	r, err := n.registry(kind)
	if err != nil {
		return err
	}
	r.subscribe(userID, roomID, sink)
	return nil
}

func (n *Notifier) Unsubscribe(kind Kind, userID, roomID string) {
	if r, err := n.registry(kind); err == nil {
		r.unsubscribe(userID, roomID)
	}
}

// Broadcast delivers ev to the current members of roomID. Delivery failures
// are handled here and never reported to the caller.
func (n *Notifier) Broadcast(ctx context.Context, kind Kind, roomID string, ev *Event) {
	r, err := n.registry(kind)
	if err != nil {
		n.log.Error(err)
		return
	}
	r.broadcast(ctx, roomID, ev)
}

func (n *Notifier) CloseRoom(kind Kind, roomID string) {
	if r, err := n.registry(kind); err == nil {
		if closed := r.closeRoom(roomID); closed > 0 {
			n.log.Infof("room closed. kind=%s room=%s sinks=%d", kind, roomID, closed)
		}
	}
}

// CloseRoomLater closes roomID after the configured delay so queued events can
// still flush.
func (n *Notifier) CloseRoomLater(kind Kind, roomID string) {
	delay := n.c.Load().CloseDelay.Std()
	if delay <= 0 {
		n.CloseRoom(kind, roomID)
		return
	}
	n.worker.Once(delay, func() { n.CloseRoom(kind, roomID) })
}

// Members lists the users with a live sink in roomID.
func (n *Notifier) Members(kind Kind, roomID string) []string {
	r, err := n.registry(kind)
	if err != nil {
		return nil
	}
	return r.members(roomID)
}

// Heartbeat pings every sink of kind immediately.
func (n *Notifier) Heartbeat(kind Kind) {
	if r, err := n.registry(kind); err == nil {
		r.heartbeat()
	}
}

func (n *Notifier) Stop() {
	for _, id := range n.heartbeats {
		n.worker.Cancel(id)
	}
	n.worker.Stop()
	for kind, r := range n.registries {
		for _, m := range r.snapshotAll() {
			r.unsubscribe(m.userID, m.roomID)
		}
		n.log.Infof("notifier stopped. kind=%s", kind)
	}
}

