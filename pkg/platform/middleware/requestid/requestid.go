package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"greengate/pkg/requestcontext"
)

// Header is the inbound/outbound request ID header.
const Header = "X-Request-ID"

// Middleware propagates an existing request ID or generates a fresh one,
// storing it in the context and echoing it in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
