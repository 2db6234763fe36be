package xlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ZapLogger *zap.Logger        = zap.NewNop()
	Logger    *zap.SugaredLogger = ZapLogger.Sugar()

	initOnce sync.Once
)

// InitLog replaces the default no-op logger. Only the first call has any
// effect; encoders and decoders running in library mode stay silent until
// a binary calls it.
func InitLog(outputPath []string, level zapcore.Level) error {
	var err error
	initOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = outputPath
		cfg.Level.SetLevel(level)

		var l *zap.Logger
		l, err = cfg.Build()
		if err != nil {
			return
		}
		ZapLogger = l
		Logger = l.Sugar()
	})
	return err
}

// ParseLevel maps a config string ("debug", "info", ...) to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, err
	}
	return level, nil
}
