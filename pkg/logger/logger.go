package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saludbit/impactou-api/pkg/config"
	"github.com/saludbit/impactou-api/pkg/middleware/requestid"
)

const serviceName = "impactou-api"

// New builds the process logger. Production emits JSON at info level unless
// LOG_LEVEL says otherwise; every entry carries the service name.
func New(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	}

	zapCfg.Encoding = "json"
	if cfg.Log.Format == "console" {
		zapCfg.Encoding = "console"
	}
	if cfg.Log.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build(zap.Fields(zap.String("service", serviceName)))
}

// Option customises the access log middleware.
type Option func(*accessLog)

// WithSubject resolves the authenticated caller for the user_id field.
func WithSubject(fn func(*gin.Context) string) Option {
	return func(a *accessLog) { a.subject = fn }
}

// SkipPaths suppresses entries for probe endpoints that succeed.
func SkipPaths(paths ...string) Option {
	return func(a *accessLog) {
		for _, p := range paths {
			a.skip[p] = struct{}{}
		}
	}
}

type accessLog struct {
	subject func(*gin.Context) string
	skip    map[string]struct{}
}

// GinMiddleware writes one http_request entry per request. Server errors are
// logged at error level with the causes handlers attached to the context,
// client errors at warn.
func GinMiddleware(l *zap.Logger, opts ...Option) gin.HandlerFunc {
	cfg := &accessLog{skip: map[string]struct{}{}}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, ok := cfg.skip[c.Request.URL.Path]; ok && status < http.StatusBadRequest {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if cfg.subject != nil {
			if userID := cfg.subject(c); userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			l.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
