package bus

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/allocation/internal/core/domain"
)

// LoggingHooks logs every handler invocation and failure.
func LoggingHooks(logger *zap.Logger) Hooks {
	fields := func(msg domain.Message, handler string) []zap.Field {
		return []zap.Field{
			zap.String("message_id", msg.MessageID().String()),
			zap.String("message_type", msg.MessageType()),
			zap.String("handler", handler),
		}
	}

	return Hooks{
		Pre: func(_ context.Context, msg domain.Message, handler string) {
			logger.Debug("handling message", fields(msg, handler)...)
		},
		Post: func(_ context.Context, msg domain.Message, handler string) {
			logger.Debug("handled message", fields(msg, handler)...)
		},
		Exception: func(_ context.Context, msg domain.Message, handler string, err error) {
			logger.Error("handler failed", append(fields(msg, handler), zap.Error(err))...)
		},
	}
}
