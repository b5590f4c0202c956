package notify

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sasha-s/go-deadlock"
)

type subKey struct {
	userID string
	roomID string
}

type member struct {
	subKey
	sink Sink
}

// registry holds the live sinks of one room kind. mu serializes every
// membership change; sends and closes happen outside of it.
type registry struct {
	kind    Kind
	log     *log.Helper
	metrics *metrics

	mu    deadlock.Mutex
	sinks map[subKey]Sink
	rooms map[string]map[string]struct{}
}

func newRegistry(kind Kind, m *metrics, logger log.Logger) *registry {
	return &registry{
		kind:    kind,
		log:     log.NewHelper(log.With(logger, "module", "notify/"+string(kind))),
		metrics: m,
		sinks:   make(map[subKey]Sink),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// subscribe registers sink for (userID, roomID), closing the sink it replaces.
func (r *registry) subscribe(userID, roomID string, sink Sink) {
	k := subKey{userID: userID, roomID: roomID}

	r.mu.Lock()
	old := r.sinks[k]
	r.sinks[k] = sink
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[userID] = struct{}{}
	r.mu.Unlock()

	if old == nil {
		r.metrics.onLive(r.kind, 1)
	} else if old != sink {
		r.log.Infof("replace sink. user=%s room=%s old=%s new=%s", userID, roomID, old.ID(), sink.ID())
		_ = old.Close()
	}

	sink.OnClose(func() {
		if r.remove(k, sink) {
			r.log.Debugf("sink closed. user=%s room=%s sink=%s", userID, roomID, sink.ID())
		}
	})
}

// unsubscribe drops whatever sink is registered for (userID, roomID) and closes it.
func (r *registry) unsubscribe(userID, roomID string) {
	k := subKey{userID: userID, roomID: roomID}

	r.mu.Lock()
	sink, ok := r.sinks[k]
	if ok {
		r.deleteLocked(k)
	}
	r.mu.Unlock()

	if ok {
		r.metrics.onLive(r.kind, -1)
		_ = sink.Close()
	}
}

// remove drops the entry only while sink is still the registered one, so a
// replaced sink closing late cannot evict its successor.
func (r *registry) remove(k subKey, sink Sink) bool {
	r.mu.Lock()
	current, ok := r.sinks[k]
	removed := ok && current == sink
	if removed {
		r.deleteLocked(k)
	}
	r.mu.Unlock()

	if removed {
		r.metrics.onLive(r.kind, -1)
	}
	return removed
}

func (r *registry) deleteLocked(k subKey) {
	delete(r.sinks, k)
	if members, ok := r.rooms[k.roomID]; ok {
		delete(members, k.userID)
		if len(members) == 0 {
			delete(r.rooms, k.roomID)
		}
	}
}

func (r *registry) snapshotRoom(roomID string) []member {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	out := make([]member, 0, len(members))
	for userID := range members {
		k := subKey{userID: userID, roomID: roomID}
		out = append(out, member{subKey: k, sink: r.sinks[k]})
	}
	return out
}

func (r *registry) snapshotAll() []member {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]member, 0, len(r.sinks))
	for k, sink := range r.sinks {
		out = append(out, member{subKey: k, sink: sink})
	}
	return out
}

// broadcast sends ev to every member of roomID. Failed members are evicted in
// one pass after the loop.
func (r *registry) broadcast(ctx context.Context, roomID string, ev *Event) {
	targets := r.snapshotRoom(roomID)
	if len(targets) == 0 {
		return
	}
	data, err := ev.Encode()
	if err != nil {
		r.log.Errorf("encode event failed. type=%s room=%s err=%v", ev.Type, roomID, err)
		return
	}

	var failed []member
	for _, m := range targets {
		if err := m.sink.Send(data); err != nil {
			r.log.Warnf("send failed. type=%s user=%s room=%s err=%v", ev.Type, m.userID, roomID, err)
			failed = append(failed, m)
		}
	}
	r.metrics.onDelivered(ctx, r.kind, len(targets)-len(failed))
	r.evict(failed)
}

// heartbeat pings every sink of this kind and evicts the ones that fail.
func (r *registry) heartbeat() {
	var failed []member
	for _, m := range r.snapshotAll() {
		if err := m.sink.Ping(); err != nil {
			failed = append(failed, m)
		}
	}
	if len(failed) > 0 {
		r.log.Infof("heartbeat evicting %d sinks", len(failed))
	}
	r.evict(failed)
}

func (r *registry) evict(failed []member) {
	if len(failed) == 0 {
		return
	}

	r.mu.Lock()
	evicted := failed[:0]
	for _, m := range failed {
		if current, ok := r.sinks[m.subKey]; ok && current == m.sink {
			r.deleteLocked(m.subKey)
			evicted = append(evicted, m)
		}
	}
	r.mu.Unlock()

	for _, m := range evicted {
		_ = m.sink.Close()
	}
	r.metrics.onEvicted(r.kind, len(evicted))
	r.metrics.onLive(r.kind, -len(evicted))
}

// closeRoom force-closes every sink of roomID and forgets the room.
func (r *registry) closeRoom(roomID string) int {
	r.mu.Lock()
	members := r.rooms[roomID]
	sinks := make([]Sink, 0, len(members))
	for userID := range members {
		k := subKey{userID: userID, roomID: roomID}
		sinks = append(sinks, r.sinks[k])
		delete(r.sinks, k)
	}
	delete(r.rooms, roomID)
	r.mu.Unlock()

	for _, s := range sinks {
		_ = s.Close()
	}
	r.metrics.onLive(r.kind, -len(sinks))
	return len(sinks)
}

func (r *registry) members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.rooms[roomID]))
	for userID := range r.rooms[roomID] {
		out = append(out, userID)
	}
	return out
}

func (r *registry) sink(userID, roomID string) Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sinks[subKey{userID: userID, roomID: roomID}]
}

func (r *registry) roomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
