package server

import (
	"github.com/google/wire"

	"github.com/yola1107/pokerdice/internal/notify"
	"github.com/yola1107/pokerdice/internal/service"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(
	NewHTTPServer,
	NewWebsocketServer,
	wire.Bind(new(Subscriber), new(*notify.Notifier)),
	wire.Bind(new(Dispatcher), new(*service.MatchService)),
)
