package observability

import (
	"os"

	"integrations/internal/application/common"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "integrations"

// InitLogger JSON в stdout, в каждой строке service и version
func InitLogger(level string) *zap.SugaredLogger {
	return NewLogger(level, zapcore.Lock(os.Stdout))
}

func NewLogger(level string, out zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		out,
		zap.NewAtomicLevelAt(DetermineLogLevel(level)),
	)

	return zap.New(core,
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("version", common.Version),
		),
	).Sugar()
}

// DetermineLogLevel неизвестный уровень = info
func DetermineLogLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || lvl > zapcore.FatalLevel {
		return zapcore.InfoLevel
	}
	return lvl
}
