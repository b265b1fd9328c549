package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. "prod" logs JSON at info level;
// anything else logs colored console output at debug level.
func NewLogger(env string) (*zap.Logger, error) {
	var config zap.Config

	switch env {
	case "prod":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	config.InitialFields = map[string]interface{}{"service": "polyscreen", "env": env}

	return config.Build()
}

func NewSugar(env string) (*zap.SugaredLogger, error) {
	logger, err := NewLogger(env)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewNop returns a logger that discards everything. Used by tests and the
// screener CLI when verbose output is off.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
