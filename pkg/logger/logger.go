package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/igefined/b3-pulse/internal/config"
)

var Module = fx.Module("logger",
	fx.Provide(
		NewLogger,
		NewSymbolLog,
	),
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}

	return zc.Build()
}

// SymbolLog records symbol availability warnings to a rotating plain-text file.
type SymbolLog struct {
	*zap.Logger
}

func NewSymbolLog(cfg *config.Config, lc fx.Lifecycle) *SymbolLog {
	if cfg.Log.SymbolFile == "" {
		return &SymbolLog{Logger: zap.NewNop()}
	}

	sink := &lumberjack.Logger{
		Filename:   cfg.Log.SymbolFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}
	lc.Append(fx.StopHook(sink.Close))

	return NewSymbolLogTo(zapcore.AddSync(sink))
}

// NewSymbolLogTo builds a SymbolLog writing "<time> - <message>" lines to w.
func NewSymbolLogTo(w zapcore.WriteSyncer) *SymbolLog {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		ConsoleSeparator: " - ",
	})
	core := zapcore.NewCore(enc, w, zap.WarnLevel)

	return &SymbolLog{Logger: zap.New(core)}
}
