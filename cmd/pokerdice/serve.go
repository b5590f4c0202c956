package main

import (
	xhttp "net/http"
	_ "net/http/pprof"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/library/log/zap"
	"github.com/yola1107/pokerdice/library/xgo"
)

func serve(path, pprofAddr string) error {
	c, bc, err := conf.LoadConfig(path)
	if err != nil {
		return err
	}
	defer c.Close()

	logger := zap.NewLogger(bc.Log)
	log.SetLogger(logger)
	defer logger.Close()

	game, notifier := conf.NewLive(bc.Game), conf.NewLive(bc.Notify)
	if err := conf.WatchConfig(c, bc, game, notifier, logger); err != nil {
		return err
	}

	if pprofAddr != "" {
		xgo.Go(func() {
			log.Infof("pprof listening on %s", pprofAddr)
			if err := xhttp.ListenAndServe(pprofAddr, nil); err != nil {
				log.Errorf("pprof stopped: %v", err)
			}
		})
	}

	app, cleanup, err := wireApp(bc.Server, bc.Data, game, notifier, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// start and wait for stop signal
	return app.Run()
}
