package logging

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/giovaniif/court-booking/infra/requestid"
	"github.com/giovaniif/court-booking/infra/tracing"
)

// New builds a JSON logger writing to stdout and, when sink is not nil, to
// sink as well (the Loki writer in production).
func New(level string, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stdout)), lvl),
	}
	if sink != nil {
		cores = append(cores, zapcore.NewCore(encoder, sink, lvl))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// WithContext adds the request id and trace id carried by ctx.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 2)
	if id := requestid.FromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := tracing.TraceID(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	return logger.With(fields...)
}

var stdout io.Writer = os.Stdout
