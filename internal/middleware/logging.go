package middleware

import (
	"net/http"
	"time"

	"attendance-sync-api/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware writes one access log line per request and records
// request metrics against the matched route template.
type LoggingMiddleware struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewLoggingMiddleware creates a new logging middleware. m may be nil.
func NewLoggingMiddleware(logger zerolog.Logger, m *metrics.Metrics) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:  logger,
		metrics: m,
	}
}

// RequestID makes sure every request carries an X-Request-ID and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// LogRequests logs incoming requests with client and route information
func (lm *LoggingMiddleware) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ClientIPFromContext(r.Context())
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route := routeTemplate(r)
		lm.metrics.RecordHTTPRequest(r.Method, route, wrapped.statusCode, duration)

		var event *zerolog.Event
		switch {
		case wrapped.statusCode >= 500:
			event = lm.logger.Error()
		case wrapped.statusCode == http.StatusTooManyRequests:
			event = lm.logger.Warn().Bool("rate_limited", true)
		case wrapped.statusCode >= 400:
			event = lm.logger.Warn()
		default:
			event = lm.logger.Info()
		}
		event.
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("route", route).
			Int("status", wrapped.statusCode).
			Int("bytes", wrapped.bytes).
			Dur("duration", duration).
			Str("client_ip", clientIP).
			Str("user_agent", r.UserAgent()).
			Str("request_id", r.Header.Get(RequestIDHeader)).
			Msg("HTTP request")
	})
}

// routeTemplate keeps metric label cardinality bounded by ids in paths.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
