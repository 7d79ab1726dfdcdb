package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// LoggingMiddleware logs every call with its method, duration and outcome.
func LoggingMiddleware(logger *zap.Logger) Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Stage) Stage {
		return &loggingStage{wrapped: wrapped{next}, logger: logger}
	}
}

type loggingStage struct {
	wrapped
	logger *zap.Logger
}

func (s *loggingStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	start := time.Now()
	resp, err := s.next.Call(ctx, req)
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("rpc call failed",
			zap.String("method", req.Method),
			zap.Duration("duration", duration),
			zap.Stringer("kind", rpcerr.KindOf(err)),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Debug("rpc call",
		zap.String("method", req.Method),
		zap.Duration("duration", duration),
		zap.Int("result_bytes", len(resp.Result)),
	)
	return resp, nil
}
