package biz

import (
	"github.com/google/wire"

	"github.com/yola1107/pokerdice/internal/biz/match"
	"github.com/yola1107/pokerdice/internal/notify"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	match.NewEngine,
	match.NewRandomizer,
	notify.NewNotifier,
	wire.Bind(new(match.Broadcaster), new(*notify.Notifier)),
)
