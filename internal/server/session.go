package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/time/rate"

	"github.com/yola1107/pokerdice/internal/notify"
	"github.com/yola1107/pokerdice/library/xgo"
)

var (
	errSessionClosed = errors.New("session: closed")
	errSendQueueFull = errors.New("session: send queue full")
)

var _ notify.Sink = (*Session)(nil)

type sessionHandler interface {
	OnSessionOpen(sess *Session)
	OnSessionClose(sess *Session)
	// DispatchMessage handles one inbound text frame.
	DispatchMessage(sess *Session, data []byte)
}

type SessionConfig struct {
	WriteTimeout time.Duration
	ReadDeadline time.Duration
	SendChanSize int
	RateLimit    rate.Limit
	RateBurst    int
}

// Session is one websocket connection subscribed to a single room.
type Session struct {
	id     string
	uid    string
	kind   notify.Kind
	roomID string

	h        sessionHandler
	conn     *websocket.Conn
	config   *SessionConfig
	limiter  *rate.Limiter
	sendChan chan []byte

	connMu sync.Mutex
	sendMu sync.Mutex
	closed atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc

	cbMu    sync.Mutex
	onClose []func()
}

func newSessionID() string {
	id, _ := gonanoid.New(12)
	return "WS-" + id
}

func NewSession(h sessionHandler, conn *websocket.Conn, config *SessionConfig, kind notify.Kind, uid, roomID string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       newSessionID(),
		uid:      uid,
		kind:     kind,
		roomID:   roomID,
		h:        h,
		conn:     conn,
		config:   config,
		limiter:  rate.NewLimiter(config.RateLimit, config.RateBurst),
		sendChan: make(chan []byte, config.SendChanSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.ReadDeadline))
	})
	s.h.OnSessionOpen(s)
	go s.readPump()
	go s.writePump()
	return s
}

func (s *Session) ID() string { return s.id }
func (s *Session) UID() string { return s.uid }
func (s *Session) Kind() notify.Kind { return s.kind }
func (s *Session) RoomID() string { return s.roomID }
func (s *Session) Closed() bool { return s.closed.Load() }
func (s *Session) Context() context.Context { return s.ctx }

// Send queues data without waiting; a full queue counts as a failed delivery.
func (s *Session) Send(data []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.Closed() {
		return errSessionClosed
	}
	select {
	case s.sendChan <- data:
		return nil
	default:
		return errSendQueueFull
	}
}

// Ping writes a websocket ping control frame.
func (s *Session) Ping() error {
	if s.Closed() {
		return errSessionClosed
	}
	return s.writeControl(websocket.PingMessage, nil)
}

func (s *Session) OnClose(fn func()) {
	s.cbMu.Lock()
	if s.Closed() {
		s.cbMu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.cbMu.Unlock()
}

func (s *Session) Close() error {
	s.close("Normal Closure")
	return nil
}

func (s *Session) close(reason string) bool {
	s.cbMu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.cbMu.Unlock()
		return false
	}
	callbacks := s.onClose
	s.onClose = nil
	s.cbMu.Unlock()

	_ = s.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	s.cancel()

	s.sendMu.Lock()
	close(s.sendChan)
	s.sendMu.Unlock()

	s.connMu.Lock()
	_ = s.conn.Close()
	s.connMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	s.h.OnSessionClose(s)
	return true
}

// allow reports whether one more inbound request fits the session's rate.
func (s *Session) allow() bool {
	return s.limiter.Allow()
}

func (s *Session) readPump() {
	defer xgo.RecoverFromError(nil)
	defer s.close("Normal Closure")

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.config.ReadDeadline)); err != nil {
			log.Errorf("session=%q set read deadline error: %v", s.id, err)
			return
		}
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("session=%q unexpected close: %v", s.id, err)
			}
			return
		}
		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			s.h.DispatchMessage(s, data)
		default:
			log.Warnf("session=%q unsupported message type: %d", s.id, msgType)
		}
	}
}

func (s *Session) writePump() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.sendChan:
			if !ok {
				return
			}
			if err := s.writeText(msg); err != nil {
				if !errors.Is(err, errSessionClosed) {
					log.Errorf("session=%q write error: %v", s.id, err)
				}
				s.close("Force Closure")
				return
			}
		}
	}
}

func (s *Session) writeControl(msgType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn.WriteControl(msgType, data, time.Now().Add(s.config.WriteTimeout))
}

func (s *Session) writeText(data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.Closed() {
		return errSessionClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
