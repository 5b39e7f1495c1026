package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

// statusRecorder remembers the status and size of a response. When body is
// set the written bytes are copied into it as well.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	body   *bytes.Buffer
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.body != nil {
		r.body.Write(b)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// accessRecord collects what inner middleware learns about a request so the
// access line can carry it.
type accessRecord struct {
	role       enums.Role
	customerID uuid.UUID
	replayed   bool
}

type accessKey struct{}

func withAccessRecord(ctx context.Context) (context.Context, *accessRecord) {
	record := &accessRecord{}
	return context.WithValue(ctx, accessKey{}, record), record
}

func noteActor(ctx context.Context, role enums.Role, customerID uuid.UUID) {
	if record, ok := ctx.Value(accessKey{}).(*accessRecord); ok {
		record.role = role
		record.customerID = customerID
	}
}

func noteReplay(ctx context.Context) {
	if record, ok := ctx.Value(accessKey{}).(*accessRecord); ok {
		record.replayed = true
	}
}

// Logging writes one "http.request" line when the handler returns. Server
// errors log at warn; health checks and scrapes at debug.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx, record := withAccessRecord(r.Context())
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.code()
			route := routePattern(r)
			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      status,
				"bytes":       rec.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if record.role != "" {
				fields["actor_role"] = string(record.role)
			}
			if record.customerID != uuid.Nil {
				fields["customer_id"] = record.customerID.String()
			}
			if record.replayed {
				fields["idempotent_replay"] = true
			}
			logCtx := logg.WithFields(ctx, fields)

			switch {
			case status >= http.StatusInternalServerError:
				logg.Warn(logCtx, "http.request")
			case quietRoute(route):
				logg.Debug(logCtx, "http.request")
			default:
				logg.Info(logCtx, "http.request")
			}
		})
	}
}

func quietRoute(route string) bool {
	return strings.HasPrefix(route, "/health/") || route == "/metrics"
}
