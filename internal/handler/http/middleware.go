package http

import (
	"net/http"
	"strings"

	apperrors "github.com/mahmudulhsn/shopping-cart/pkg/errors"
	"github.com/mahmudulhsn/shopping-cart/pkg/httputil"
	"github.com/mahmudulhsn/shopping-cart/pkg/logger"
	"github.com/mahmudulhsn/shopping-cart/pkg/middleware"
)

// maxSessionIDLen bounds the header so it cannot bloat storage keys.
const maxSessionIDLen = 128

// SessionIDFromHeader reads the X-Session-ID header (issued by the API
// gateway) and stores it in the request context. Requests without one are
// rejected with 401 Unauthorized.
func SessionIDFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(middleware.SessionIDHeader))
		if sid == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
				Error: &httputil.ErrorResponse{Code: apperrors.CodeUnauthorized, Message: "session id required"},
			})
			return
		}
		if len(sid) > maxSessionIDLen {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: apperrors.CodeInvalidInput, Message: "session id too long"},
			})
			return
		}
		ctx := logger.WithSessionID(r.Context(), sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: apperrors.CodeUnsupportedMediaType, Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
