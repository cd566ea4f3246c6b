package middleware

import (
	"log/slog"
	"time"

	"github.com/broady/tycon"
)

// LoggingInterceptor creates an interceptor that logs member calls using slog.
// It logs the start and end of each call, including duration and error status.
func LoggingInterceptor(logger *slog.Logger) tycon.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *tycon.Call, next tycon.Func) (any, error) {
		start := time.Now()

		logger.InfoContext(c, "call started",
			slog.String("member", c.MemberID()),
			slog.Int("args", len(c.Args)),
		)

		res, err := next(c)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(c, "call failed",
				slog.String("member", c.MemberID()),
				slog.Duration("duration", duration),
				slog.String("code", string(tycon.CodeOf(err))),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(c, "call completed",
				slog.String("member", c.MemberID()),
				slog.Duration("duration", duration),
			)
		}

		return res, err
	}
}
