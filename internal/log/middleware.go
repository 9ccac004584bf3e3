package log

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewContext stores logger in ctx.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts the logger stored by Middleware, falling back to the
// default slog logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// Middleware puts a request scoped logger in the request context and logs
// each completed request. 4xx responses log at Warn, 5xx at Error.
func Middleware(logger *Logger) echo.MiddlewareFunc {
	httpLogger := logger.WithComponent(ComponentHTTP)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = req.Header.Get(echo.HeaderXRequestID)
			}

			reqLogger := httpLogger
			if reqID != "" {
				reqLogger = httpLogger.With(FieldRequestID, reqID)
			}
			c.SetRequest(req.WithContext(NewContext(req.Context(), reqLogger)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			fields := NewFields().
				WithHTTPRequest(req.Method, req.URL.Path, req.URL.RawQuery, req.UserAgent()).
				WithHTTPResponse(status, time.Since(start).Milliseconds()).
				WithClientIP(c.RealIP()).
				WithError(err)
			reqLogger.Logger.Log(req.Context(), level, "HTTP request completed", reqLogger.tag(fields.ToSlice())...)
			return nil
		}
	}
}
