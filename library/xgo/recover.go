package xgo

import (
	"runtime/debug"

	"github.com/go-kratos/kratos/v2/log"
)

// RecoverFromError must be deferred directly. cb receives the recovered value.
func RecoverFromError(cb func(e any)) {
	if e := recover(); e != nil {
		log.Errorf("Recover => %v\n%s\n", e, debug.Stack())
		if cb != nil {
			cb(e)
		}
	}
}

// Go runs fn in a new goroutine that cannot crash the process.
func Go(fn func()) {
	go func() {
		defer RecoverFromError(nil)
		fn()
	}()
}
