package conf

import "sync/atomic"

// Live holds a config section that a reload may replace while readers use it.
// A loaded section is never written again; reloads publish a new one.
type Live[T any] struct {
	v atomic.Pointer[T]
}

func NewLive[T any](v *T) *Live[T] {
	l := &Live[T]{}
	l.v.Store(v)
	return l
}

// Load returns the current section. Callers read it once per operation.
func (l *Live[T]) Load() *T { return l.v.Load() }

func (l *Live[T]) Store(v *T) { l.v.Store(v) }

type (
	LiveGame   = Live[Game]
	LiveNotify = Live[Notify]
)
