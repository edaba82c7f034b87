package service

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/castlemilk/pfinance-insights/internal/logger"
)

// LoggingInterceptor attaches a request-scoped logger to the context and
// logs each call with its outcome and latency.
func LoggingInterceptor(log zerolog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			reqLog := log.With().Str("procedure", req.Spec().Procedure).Logger()
			ctx = logger.WithContext(ctx, reqLog)

			resp, err := next(ctx, req)

			event := reqLog.Info()
			if err != nil {
				var cerr *connect.Error
				if errors.As(err, &cerr) && cerr.Code() != connect.CodeInternal && cerr.Code() != connect.CodeUnavailable {
					event = reqLog.Warn()
				} else {
					event = reqLog.Error()
				}
				event = event.Err(err).Str("code", connect.CodeOf(err).String())
			}
			event.Dur("duration", time.Since(start)).Msg("rpc")
			return resp, err
		}
	}
}
