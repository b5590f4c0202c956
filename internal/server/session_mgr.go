package server

import (
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
)

type SessionManager struct {
	count    atomic.Int32
	sessions sync.Map
}

func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

func (m *SessionManager) Len() int32 {
	return m.count.Load()
}

func (m *SessionManager) Add(sess *Session) {
	if _, loaded := m.sessions.LoadOrStore(sess.ID(), sess); !loaded {
		count := m.count.Add(1)
		log.Infof("ws connected. remote=%q session=%q uid=%s room=%s/%s sessions=%d",
			sess.conn.RemoteAddr(), sess.ID(), sess.UID(), sess.Kind(), sess.RoomID(), count)
	}
}

func (m *SessionManager) Delete(sess *Session) {
	if _, loaded := m.sessions.LoadAndDelete(sess.ID()); loaded {
		count := m.count.Add(-1)
		log.Infof("ws disconnected. session=%q uid=%s sessions=%d", sess.ID(), sess.UID(), count)
	}
}

func (m *SessionManager) Get(id string) *Session {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil
	}
	return v.(*Session)
}

func (m *SessionManager) Range(fn func(*Session)) {
	m.sessions.Range(func(_, v any) bool {
		fn(v.(*Session))
		return true
	})
}

func (m *SessionManager) CloseAll() {
	m.Range(func(sess *Session) { _ = sess.Close() })
}
