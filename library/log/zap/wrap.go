package zap

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeFormat = "2006/01/02 15:04:05.000"

var (
	levelColors = map[zapcore.Level]string{
		zapcore.DebugLevel:  "\x1b[36m",
		zapcore.InfoLevel:   "\x1b[32m",
		zapcore.WarnLevel:   "\x1b[33m",
		zapcore.ErrorLevel:  "\x1b[31m",
		zapcore.DPanicLevel: "\x1b[35m",
		zapcore.PanicLevel:  "\x1b[35m",
		zapcore.FatalLevel:  "\x1b[35m",
	}

	levelNames = map[zapcore.Level]string{
		zapcore.DebugLevel:  "DEBUG",
		zapcore.InfoLevel:   "INFO·",
		zapcore.WarnLevel:   "WARN·",
		zapcore.ErrorLevel:  "ERROR",
		zapcore.DPanicLevel: "PANIC",
		zapcore.PanicLevel:  "PANIC",
		zapcore.FatalLevel:  "FATAL",
	}
)

type zapWrap struct {
	log     *zap.Logger
	level   zap.AtomicLevel
	writers []*lumberjack.Logger
}

func (w *zapWrap) close() error {
	_ = w.log.Sync()
	for _, lj := range w.writers {
		_ = lj.Close()
	}
	return nil
}

func newZapWrap(c *Config, console zapcore.WriteSyncer) *zapWrap {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		panic(fmt.Errorf("invalid log level: %s", c.Level))
	}

	w := &zapWrap{level: level}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(newEncoderConfig(false)), console, level),
	}
	if c.Mode == ModeProd && c.Directory != "" {
		cores = append(cores, w.newFileCores(c)...)
	}

	w.log = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.PanicLevel),
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(core, time.Second, 2000, 10)
		}),
	)
	return w
}

func (w *zapWrap) newFileCores(c *Config) []zapcore.Core {
	app := c.AppName
	if app == "" {
		app = "app"
	}
	rotate := c.Rotate
	if rotate == nil {
		rotate = DefaultConfig().Rotate
	}

	fileCore := func(filename string, minLevel zapcore.LevelEnabler) zapcore.Core {
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(c.Directory, filename),
			MaxSize:    rotate.MaxSizeMB,
			MaxBackups: rotate.MaxBackups,
			MaxAge:     rotate.MaxAgeDays,
			Compress:   rotate.Compress,
			LocalTime:  rotate.LocalTime,
		}
		w.writers = append(w.writers, writer)

		encoder := zapcore.NewConsoleEncoder(newEncoderConfig(true))
		if c.FormatJSON {
			encoder = zapcore.NewJSONEncoder(newEncoderConfig(true))
		}
		return zapcore.NewCore(encoder, zapcore.AddSync(writer), minLevel)
	}

	cores := []zapcore.Core{fileCore(app+".log", w.level)}
	if c.ErrorFile {
		cores = append(cores, fileCore(app+"_error.log", zap.ErrorLevel))
	}
	return cores
}

func newEncoderConfig(file bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = timeEncoder
	cfg.EncodeLevel = levelEncoder
	cfg.EncodeCaller = callerEncoder
	cfg.ConsoleSeparator = " "

	if !file {
		cfg.EncodeLevel = colorLevelEncoder
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return cfg
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", t.Format(timeFormat)))
}

func callerEncoder(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", c.TrimmedPath()))
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", levelNames[l]))
}

func colorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s%s\x1b[0m]", levelColors[l], levelNames[l]))
}
