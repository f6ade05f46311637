package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
	"github.com/louisbranch/assetflow/internal/platform/id"
	"github.com/louisbranch/assetflow/internal/platform/logging"
	"github.com/louisbranch/assetflow/internal/platform/requestctx"
)

// UnaryServerInterceptor attaches request id, locale and principal to the
// context and logs each call with its status code.
func UnaryServerInterceptor(identity Identity, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)

		requestID := firstValue(md, RequestIDHeader)
		if requestID == "" {
			if generated, err := id.NewID(); err == nil {
				requestID = generated
			}
		}
		locale := firstValue(md, LocaleHeader)
		if locale == "" {
			locale = firstValue(md, acceptLanguage)
		}
		ctx = requestctx.WithRequestID(ctx, requestID)
		ctx = requestctx.WithLocale(ctx, locale)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

		principal, err := identity.Principal(md)
		if err != nil {
			logging.WithContext(ctx, logger).Warn("grpc call rejected",
				zap.String("method", info.FullMethod), zap.Error(err))
			return nil, apperrors.HandleError(err, locale)
		}
		ctx = requestctx.WithPrincipal(ctx, principal)

		started := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(started)),
		}
		if err != nil {
			logging.WithContext(ctx, logger).Info("grpc call failed", append(fields, zap.Error(err))...)
			return resp, err
		}
		logging.WithContext(ctx, logger).Debug("grpc call", fields...)
		return resp, nil
	}
}
