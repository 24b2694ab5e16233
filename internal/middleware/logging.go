package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code and
// body size.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer so websocket upgrades can hijack it.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestActor is shared by pointer with the auth middleware further down
// the chain, which fills it in.
type requestActor struct {
	userID int64
	admin  bool
}

type actorKey struct{}

func actorFrom(ctx context.Context) *requestActor {
	a, _ := ctx.Value(actorKey{}).(*requestActor)
	return a
}

func noteUser(r *http.Request, userID int64) {
	if a := actorFrom(r.Context()); a != nil {
		a.userID = userID
	}
}

func noteAdmin(r *http.Request) {
	if a := actorFrom(r.Context()); a != nil {
		a.admin = true
	}
}

// RequestLogger logs each request with method, path, status, duration,
// response size and remote IP, plus the signed-in user or admin flag.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			actor := &requestActor{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", rec.bytes),
				slog.String("remote", RealIP(r)),
			}
			if actor.userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", actor.userID))
			}
			if actor.admin {
				attrs = append(attrs, slog.Bool("admin", true))
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "request", attrs...)
		})
	}
}
