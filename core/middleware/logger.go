package middleware

import (
	"log/slog"
	"time"

	"github.com/searchktools/fast-express/core/logger"
	"github.com/searchktools/fast-express/core/router"
)

// Logger writes one access log record per request once its response is
// written. 5xx responses log at error level, 4xx at warn.
func Logger(log *slog.Logger) router.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("access"))

	return func(req *router.Request, res *router.Response, next router.NextFunc) {
		start := time.Now()
		onDone(req, res, func(status int) {
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			log.LogAttrs(req.Context(), level, "request",
				logger.Method(req.Method()),
				logger.Path(req.OriginalURL()),
				slog.String("route", req.Route()),
				logger.StatusCode(status),
				logger.Duration(time.Since(start)),
				logger.RequestID(GetRequestID(req)),
			)
		})
		next(nil)
	}
}
