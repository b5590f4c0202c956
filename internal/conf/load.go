package conf

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/yola1107/pokerdice/library/ext"
	"github.com/yola1107/pokerdice/library/log/zap"
)

// EnvPrefix namespaces every environment override, e.g. POKERDICE_DATA_DB_DSN.
const EnvPrefix = "POKERDICE_"

// LoadConfig reads the yaml file at path on top of the defaults and then applies
// environment overrides. The returned config.Config must be closed by the caller.
func LoadConfig(path string) (config.Config, *Bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(path)))
	if err := c.Load(); err != nil {
		return nil, nil, fmt.Errorf("load config %q: %w", path, err)
	}

	bc := Default()
	if err := c.Scan(bc); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("scan config: %w", err)
	}
	if err := ApplyEnv(bc); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	if err := bc.Validate(); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("bootstrap config invalid: %w", err)
	}
	return c, bc, nil
}

// ApplyEnv overwrites fields whose POKERDICE_* variable is set.
func ApplyEnv(bc *Bootstrap) error {
	if err := env.ParseWithOptions(bc, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	return nil
}

// WatchConfig publishes every valid change of the game, notify and log
// sections. Environment overrides win over the file on reload as they do at
// startup.
func WatchConfig(c config.Config, bc *Bootstrap, game *LiveGame, notify *LiveNotify, logger *zap.Logger) error {
	if err := watch(c, "game", "GAME_", game, nil); err != nil {
		return err
	}
	if err := watch(c, "notify", "NOTIFY_", notify, nil); err != nil {
		return err
	}
	return watch(c, "log", "LOG_", NewLive(bc.Log), func(lc *zap.Config) {
		if lc.Level != logger.GetLevel() {
			logger.SetLevel(lc.Level)
		}
		logger.SetSensitive(lc.Sensitive)
	})
}

func watch[T any](c config.Config, key, envPrefix string, live *Live[T], hook func(*T)) error {
	err := c.Watch(key, func(_ string, val config.Value) {
		cur := live.Load()
		next := new(T)
		if err := ext.DeepCopy(next, cur); err != nil {
			log.Errorf("[config] copy failed: key=%q, err=%v", key, err)
			return
		}
		if err := val.Scan(next); err != nil {
			log.Errorf("[config] scan failed: key=%q, err=%v", key, err)
			return
		}
		if err := env.ParseWithOptions(next, env.Options{Prefix: EnvPrefix + envPrefix}); err != nil {
			log.Errorf("[config] env overrides failed: key=%q, err=%v", key, err)
			return
		}
		if v, ok := any(next).(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				log.Errorf("[config] validation failed: key=%q, err=%v", key, err)
				return
			}
		}

		_, diff, err := ext.DiffLog(cur, next)
		if err != nil {
			log.Errorf("[config] diff failed: key=%q, err=%v", key, err)
			return
		}
		if diff == "" {
			return
		}
		log.Warnf("[config] [%q] updated:\n%s", key, diff)
		live.Store(next)
		if hook != nil {
			hook(next)
		}
	})
	if errors.Is(err, config.ErrNotFound) {
		log.Infof("[config] %q is not in the file and will not reload", key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("watch %q failed: %w", key, err)
	}
	return nil
}
