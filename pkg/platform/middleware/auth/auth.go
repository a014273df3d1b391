package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "greengate/pkg/domain"
	"greengate/pkg/requestcontext"
)

// Verifier validates bearer tokens issued by the managed auth provider and
// extracts the subject user ID.
type Verifier struct {
	signingKey []byte
}

// NewVerifier constructs a Verifier for HS256 tokens.
func NewVerifier(signingKey string) *Verifier {
	return &Verifier{signingKey: []byte(signingKey)}
}

// UserIDFromToken parses and validates a token, returning its subject.
func (v *Verifier) UserIDFromToken(tokenString string) (id.UserID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return id.UserID{}, fmt.Errorf("parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return id.UserID{}, fmt.Errorf("token missing subject")
	}
	return id.ParseUserID(sub)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user ID in the request context.
func RequireAuth(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, ok := bearerUserID(r, verifier)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - invalid or missing token",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}

// OptionalAuth stores the user ID when a valid bearer token is present and
// passes the request through anonymously otherwise. Used by region-gated
// endpoints whose response shape depends on authentication state.
func OptionalAuth(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := bearerUserID(r, verifier); ok {
				r = r.WithContext(requestcontext.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerUserID(r *http.Request, verifier *Verifier) (id.UserID, bool) {
	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok || token == "" {
		return id.UserID{}, false
	}
	userID, err := verifier.UserIDFromToken(token)
	if err != nil {
		return id.UserID{}, false
	}
	return userID, true
}
