package notify

import (
	"sync"

	"github.com/go-kratos/kratos/v2/encoding"
	"github.com/go-kratos/kratos/v2/encoding/json"
)

// Kind separates lobby rooms from game rooms; each kind has its own registry
// and heartbeat interval.
type Kind string

const (
	KindLobby Kind = "lobby"
	KindGame  Kind = "game"
)

func (k Kind) Valid() bool {
	return k == KindLobby || k == KindGame
}

// OpPush marks server initiated frames on the wire.
const OpPush = "push"

// Event is one typed notification. The payload is encoded once no matter how
// many sinks receive it.
type Event struct {
	Type    string
	Payload any

	once sync.Once
	data []byte
	err  error
}

func NewEvent(typ string, payload any) *Event {
	return &Event{Type: typ, Payload: payload}
}

type frame struct {
	Op   string `json:"op"`
	Cmd  string `json:"cmd"`
	Body any    `json:"body,omitempty"`
}

// Encode returns the push frame {"op":"push","cmd":<type>,"body":<payload>}.
func (e *Event) Encode() ([]byte, error) {
	e.once.Do(func() {
		e.data, e.err = encoding.GetCodec(json.Name).Marshal(&frame{Op: OpPush, Cmd: e.Type, Body: e.Payload})
	})
	return e.data, e.err
}

// Sink is a push-only connection to one subscriber.
type Sink interface {
	ID() string
	// Send queues an encoded event. It must not block on a slow client.
	Send(data []byte) error
	// Ping sends a keep-alive.
	Ping() error
	// Close is idempotent and fires every OnClose callback once.
	Close() error
	// OnClose registers a callback for completion, error or timeout. A callback
	// registered after close runs immediately.
	OnClose(fn func())
}
