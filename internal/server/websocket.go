package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/encoding"
	kjson "github.com/go-kratos/kratos/v2/encoding/json"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/internal/notify"
	"github.com/yola1107/pokerdice/pkg/codes"
)

var _ transport.Server = (*WebsocketServer)(nil)

const (
	OpRequest  = "request"
	OpResponse = "response"

	requestTimeout = 5 * time.Second
)

// Subscriber attaches sessions to the fan-out rooms.
type Subscriber interface {
	Subscribe(kind notify.Kind, userID, roomID string, sink notify.Sink) error
}

// Dispatcher authorizes connections and runs inbound commands.
type Dispatcher interface {
	Authorize(ctx context.Context, kind notify.Kind, userID, roomID string) error
	Dispatch(ctx context.Context, kind notify.Kind, userID, roomID, cmd string, body []byte) (any, error)
}

type requestFrame struct {
	Op   string          `json:"op"`
	Seq  int64           `json:"seq"`
	Cmd  string          `json:"cmd"`
	Body json.RawMessage `json:"body,omitempty"`
}

type responseFrame struct {
	Op      string `json:"op"`
	Seq     int64  `json:"seq"`
	Cmd     string `json:"cmd"`
	Code    int32  `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Body    any    `json:"body,omitempty"`
}

// WebsocketServer serves GET /ws/{kind}/{roomId}?uid=<id>. Each connection
// becomes the sink of (uid, room) and may send request frames.
type WebsocketServer struct {
	*http.Server
	c           *conf.Websocket
	lis         net.Listener
	baseCtx     context.Context
	upgrader    *websocket.Upgrader
	sessions    *SessionManager
	sessionConf *SessionConfig
	sub         Subscriber
	d           Dispatcher
	log         *log.Helper
}

func NewWebsocketServer(c *conf.Server, sub Subscriber, d Dispatcher, logger log.Logger) *WebsocketServer {
	wc := c.Websocket
	srv := &WebsocketServer{
		c:       wc,
		baseCtx: context.Background(),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: NewSessionManager(),
		sessionConf: &SessionConfig{
			WriteTimeout: wc.WriteTimeout.Std(),
			ReadDeadline: wc.ReadDeadline.Std(),
			SendChanSize: wc.SendChanSize,
			RateLimit:    rate.Limit(wc.RateLimit),
			RateBurst:    wc.RateBurst,
		},
		sub: sub,
		d:   d,
		log: log.NewHelper(log.With(logger, "module", "server/websocket")),
	}
	if wc.RateLimit <= 0 {
		srv.sessionConf.RateLimit = rate.Inf
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{kind}/{roomId}", srv.handleConnect)
	srv.Server = &http.Server{Addr: wc.Addr, Handler: mux}
	return srv
}

func (s *WebsocketServer) Start(ctx context.Context) error {
	if s.lis == nil {
		lis, err := net.Listen("tcp", s.c.Addr)
		if err != nil {
			return err
		}
		s.lis = lis
	}
	s.baseCtx = ctx
	s.BaseContext = func(net.Listener) context.Context { return ctx }
	s.log.Infof("[websocket] server listening on: %s", s.lis.Addr().String())
	if err := s.Serve(s.lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebsocketServer) Stop(ctx context.Context) error {
	s.log.Info("[websocket] server stopping")
	err := s.Shutdown(ctx)
	s.sessions.CloseAll()
	return err
}

func (s *WebsocketServer) Sessions() *SessionManager {
	return s.sessions
}

func (s *WebsocketServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	kind := notify.Kind(r.PathValue("kind"))
	roomID := r.PathValue("roomId")
	uid := r.URL.Query().Get("uid")

	if !kind.Valid() {
		khttp.DefaultErrorEncoder(w, r, kerrors.NotFound("UNKNOWN_ROOM_KIND", "room kind must be game or lobby"))
		return
	}
	if limit := s.c.MaxConn; limit > 0 && int(s.sessions.Len()) >= limit {
		s.log.Warnf("[websocket] over max connections(%d)", limit)
		khttp.DefaultErrorEncoder(w, r, kerrors.ServiceUnavailable("TOO_MANY_CONNECTIONS", "too many connections"))
		return
	}
	if err := s.d.Authorize(r.Context(), kind, uid, roomID); err != nil {
		khttp.DefaultErrorEncoder(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("[websocket] upgrade error: %v", err)
		return
	}
	_ = NewSession(s, conn, s.sessionConf, kind, uid, roomID)
}

func (s *WebsocketServer) OnSessionOpen(sess *Session) {
	s.sessions.Add(sess)
	if err := s.sub.Subscribe(sess.Kind(), sess.UID(), sess.RoomID(), sess); err != nil {
		s.log.Errorf("subscribe failed. session=%s err=%v", sess.ID(), err)
		_ = sess.Close()
	}
}

func (s *WebsocketServer) OnSessionClose(sess *Session) {
	s.sessions.Delete(sess)
}

// DispatchMessage answers one request frame with a response frame carrying
// the same seq.
func (s *WebsocketServer) DispatchMessage(sess *Session, data []byte) {
	codec := encoding.GetCodec(kjson.Name)

	var req requestFrame
	if err := codec.Unmarshal(data, &req); err != nil {
		s.reply(sess, &req, nil, codes.ErrBadRequest.WithCause(err))
		return
	}
	if req.Op != OpRequest {
		s.log.Warnf("unknown op %q. session=%s", req.Op, sess.ID())
		return
	}
	if !sess.allow() {
		s.reply(sess, &req, nil, codes.ErrRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, requestTimeout)
	defer cancel()
	reply, err := s.d.Dispatch(ctx, sess.Kind(), sess.UID(), sess.RoomID(), req.Cmd, req.Body)
	s.reply(sess, &req, reply, err)
}

func (s *WebsocketServer) reply(sess *Session, req *requestFrame, body any, err error) {
	resp := &responseFrame{Op: OpResponse, Seq: req.Seq, Cmd: req.Cmd, Body: body}
	if err != nil {
		e := kerrors.FromError(err)
		resp.Code, resp.Reason, resp.Message, resp.Body = e.Code, e.Reason, e.Message, nil
		if e.Code >= http.StatusInternalServerError {
			s.log.Errorf("command failed. cmd=%s uid=%s err=%v", req.Cmd, sess.UID(), err)
		}
	}
	data, err := encoding.GetCodec(kjson.Name).Marshal(resp)
	if err != nil {
		s.log.Errorf("encode response: %v", err)
		return
	}
	if err := sess.Send(data); err != nil {
		s.log.Warnf("send response failed. session=%s err=%v", sess.ID(), err)
	}
}
