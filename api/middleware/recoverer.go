package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/kirana-backend/api/responses"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. When the handler had
// already started its response only the log line is written.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("panic: %v", rec), "handler panicked")
				ctx := r.Context()
				if logg != nil {
					fields := map[string]any{"route": routePattern(r)}
					if id, ok := CustomerIDFromContext(ctx); ok {
						fields["customer_id"] = id.String()
					}
					logg.Error(logg.WithFields(ctx, fields), "http.panic", err)
				}

				if sr, ok := w.(*statusRecorder); ok && sr.status != 0 {
					return
				}
				responses.WriteError(ctx, nil, w, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
