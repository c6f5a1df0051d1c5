package handler

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Recoverer turns a panic in a route handler into an UnexpectedError
// envelope. http.ErrAbortHandler is re-raised. When the handler had already
// started the response the fault is only reported.
func (h *CampaignHandler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			h.Log.Debug("recovered panic", zap.Any("panic", rvr), zap.ByteString("stack", debug.Stack()))

			fault := fmt.Errorf("panic: %v", rvr)
			context := map[string]any{
				"endpoint": r.URL.Path,
				"method":   r.Method,
			}
			if ww.Status() != 0 {
				h.Log.Warn("panic after response started", zap.Int("status", ww.Status()))
				h.recordFault(r, fault, "", context)
				return
			}
			h.writeError(w, r, fault, "", context)
		}()

		next.ServeHTTP(ww, r)
	})
}
