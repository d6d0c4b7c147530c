// CLAUDE:SUMMARY HTTP middleware for the jurimon API: security headers, body cap, trace IDs, per-IP portal rate limit, maintenance switch.
// CLAUDE:EXPORTS DefaultStack, LoggerKey, GetLogger, SecurityHeaders, DefaultHeaders, MaxBody, TraceID, RateLimiter, NewRateLimiter, MaintenanceMode, NewMaintenanceMode, SetMaintenance, ExtractIP, Init

// Package shield provides the HTTP middleware shared by every jurimon route.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(logger, 1<<20) {
//	    r.Use(mw)
//	}
//	r.With(limiter.Middleware).Post("/api/portal/lookup", h)
package shield

import (
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns SecurityHeaders, MaxBody and TraceID in that order.
// Rate limiting and maintenance are per-route and left to the caller.
func DefaultStack(logger *slog.Logger, maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		TraceID(logger),
	}
}
